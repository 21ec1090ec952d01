package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("06:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 6 * * *", spec)

	spec, err = buildDailySpec(" 23:05 ")
	require.NoError(t, err)
	assert.Equal(t, "0 5 23 * * *", spec)

	for _, bad := range []string{"", "6", "24:00", "12:60", "aa:10", "1:2:3"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC, nullLogger())

	_, err := s.ScheduleDaily("warmup", "06:00", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval("digest", 90*time.Minute, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval("broken", 0, func() {})
	assert.Error(t, err)

	assert.Len(t, s.cron.Entries(), 2)
}
