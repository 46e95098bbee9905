package poll

import (
	"math/rand/v2"
	"sort"
	"time"
)

// RandomTimes draws n poll instants uniformly, at minute granularity, from
// [now, now+horizon] and returns them sorted ascending.
func RandomTimes(now time.Time, horizon time.Duration, n int, rng *rand.Rand) []time.Time {
	if n <= 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	minutes := int64(horizon / time.Minute)

	times := make([]time.Time, n)
	for i := range times {
		offset := rng.Int64N(minutes + 1)
		times[i] = now.Add(time.Duration(offset) * time.Minute)
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	return times
}

// HourlyTimes returns one instant on the hour for every hour in
// [fromHour, toHour] on the calendar day of day, in day's location.
func HourlyTimes(day time.Time, fromHour, toHour int) []time.Time {
	if fromHour < 0 || toHour > 23 || fromHour > toHour {
		return nil
	}

	year, month, date := day.Date()

	times := make([]time.Time, 0, toHour-fromHour+1)
	for hour := fromHour; hour <= toHour; hour++ {
		times = append(times, time.Date(year, month, date, hour, 0, 0, 0, day.Location()))
	}

	return times
}
