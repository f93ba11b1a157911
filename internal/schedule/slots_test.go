package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestWindowOverlaps(t *testing.T) {
	base := Window{Start: 540, End: 570} // 09:00-09:30

	assert.True(t, base.Overlaps(Window{Start: 555, End: 600}))
	assert.True(t, base.Overlaps(Window{Start: 500, End: 545}))
	assert.True(t, base.Overlaps(Window{Start: 500, End: 700}))

	// Touching edges do not overlap.
	assert.False(t, base.Overlaps(Window{Start: 570, End: 600}))
	assert.False(t, base.Overlaps(Window{Start: 500, End: 540}))
	assert.False(t, base.Overlaps(Window{Start: 600, End: 660}))
}

func TestCandidateStarts_ExactFit(t *testing.T) {
	// 09:00-12:00 with 30-minute duration: exactly 6 candidates.
	starts := CandidateStarts(Window{Start: 540, End: 720}, 30, nil)
	require.Len(t, starts, 6)
	assert.Equal(t, 540, starts[0])
	assert.Equal(t, 690, starts[5])
}

func TestCandidateStarts_TrailingRemainder(t *testing.T) {
	// 09:00-10:45 with 30-minute duration: 10:30 does not fit.
	starts := CandidateStarts(Window{Start: 540, End: 645}, 30, nil)
	require.Len(t, starts, 3)
	assert.Equal(t, []int{540, 570, 600}, starts)
}

func TestCandidateStarts_Blocked(t *testing.T) {
	blocked := []Window{{Start: 600, End: 630}} // 10:00-10:30
	starts := CandidateStarts(Window{Start: 540, End: 720}, 30, blocked)
	require.Len(t, starts, 5)
	assert.NotContains(t, starts, 600)

	// Block touching a slot edge removes nothing.
	touching := []Window{{Start: 720, End: 780}}
	starts = CandidateStarts(Window{Start: 540, End: 720}, 30, touching)
	assert.Len(t, starts, 6)
}

func TestCandidateStarts_Degenerate(t *testing.T) {
	assert.Nil(t, CandidateStarts(Window{Start: 540, End: 540}, 30, nil))
	assert.Nil(t, CandidateStarts(Window{Start: 600, End: 540}, 30, nil))
	assert.Nil(t, CandidateStarts(Window{Start: 540, End: 720}, 0, nil))
	// Period shorter than the duration yields no candidates.
	assert.Nil(t, CandidateStarts(Window{Start: 540, End: 550}, 30, nil))
}

func TestIntervalIntersects(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 2, 20, h, m, 0, 0, time.UTC)
	}
	slot := Interval{Start: at(14, 0), End: at(14, 30)}

	assert.True(t, slot.Intersects(Interval{Start: at(14, 15), End: at(15, 0)}))
	assert.True(t, slot.Intersects(Interval{Start: at(13, 0), End: at(14, 1)}))
	assert.False(t, slot.Intersects(Interval{Start: at(14, 30), End: at(15, 0)}))
	assert.False(t, slot.Intersects(Interval{Start: at(13, 0), End: at(14, 0)}))

	busy := []Interval{
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(14, 15), End: at(14, 45)},
	}
	assert.True(t, slot.IntersectsAny(busy))
	assert.False(t, slot.IntersectsAny(busy[:1]))
}

func TestAtMinutes_Offsets(t *testing.T) {
	// Sao Paulo is UTC-3 with no DST in 2026: local 09:00 is 12:00 UTC.
	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	got := AtMinutes(2026, time.February, 20, 540, sp)
	assert.Equal(t, time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC), got)

	// Kathmandu has a +05:45 offset.
	ktm, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)
	got = AtMinutes(2026, time.February, 20, 540, ktm)
	assert.Equal(t, time.Date(2026, 2, 20, 3, 15, 0, 0, time.UTC), got)
}

func TestAtMinutes_SpringForwardGap(t *testing.T) {
	// Berlin skips 02:00-03:00 on 2026-03-29. time.Date normalizes a wall
	// clock inside the gap onto the following hour, so local 02:00 and
	// local 03:00 land on the same instant.
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	gap := AtMinutes(2026, time.March, 29, 120, berlin)
	after := AtMinutes(2026, time.March, 29, 180, berlin)
	assert.True(t, gap.Equal(after))

	assert.False(t, Materializes(2026, time.March, 29, 120, berlin), "02:00 is inside the gap")
	assert.True(t, Materializes(2026, time.March, 29, 60, berlin))
	assert.True(t, Materializes(2026, time.March, 29, 180, berlin))

	// An ordinary day materializes every minute.
	assert.True(t, Materializes(2026, time.March, 28, 120, berlin))
}
