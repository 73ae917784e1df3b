package pipeline

import (
	"fmt"
	"sort"
	"time"

	"sms-decline-analysis/internal/model"
)

// Decompose splits the change in mean daily revenue between the partitions:
//
//	volume     = (post sends/day - pre sends/day) * pre revenue-per-send
//	efficiency = (post RPS - pre RPS) * post sends/day
//
// The two terms sum exactly to the total change. Shares are percentages of
// the total change, so a zero change is a *model.DataError.
func Decompose(pre, post model.PartitionTotals) (model.Decomposition, error) {
	var d model.Decomposition
	if pre.Days == 0 || post.Days == 0 {
		return d, &model.DataError{Field: "decomposition", Reason: "empty partition"}
	}
	if pre.Sent == 0 || post.Sent == 0 {
		return d, &model.DataError{Field: "decomposition", Reason: "zero sends in a partition"}
	}

	d.PreRevenuePerDay = pre.Revenue / float64(pre.Days)
	d.PostRevenuePerDay = post.Revenue / float64(post.Days)
	d.PreSendsPerDay = pre.Sent / float64(pre.Days)
	d.PostSendsPerDay = post.Sent / float64(post.Days)
	d.PreRevPerSend = d.PreRevenuePerDay / d.PreSendsPerDay
	d.PostRevPerSend = d.PostRevenuePerDay / d.PostSendsPerDay

	d.TotalDelta = d.PostRevenuePerDay - d.PreRevenuePerDay
	if d.TotalDelta == 0 {
		return d, &model.DataError{Field: "decomposition", Reason: "no revenue change to attribute"}
	}
	if d.PreRevenuePerDay != 0 {
		d.TotalDeltaPct = d.TotalDelta / d.PreRevenuePerDay * 100
	}

	d.VolumeEffect = (d.PostSendsPerDay - d.PreSendsPerDay) * d.PreRevPerSend
	d.EfficiencyEffect = (d.PostRevPerSend - d.PreRevPerSend) * d.PostSendsPerDay
	d.VolumeSharePct = d.VolumeEffect / d.TotalDelta * 100
	d.EfficiencySharePct = d.EfficiencyEffect / d.TotalDelta * 100
	return d, nil
}

// PhoneBreakdown attributes the revenue change to phone numbers. Per-phone
// daily means divide by the partition's day count (not the phone's own active
// days), so the per-phone deltas add up to the total change.
func PhoneBreakdown(obs []model.Observation, pre, post model.PartitionTotals) ([]model.PhoneGroup, []model.StatusRollup, error) {
	if pre.Days == 0 || post.Days == 0 {
		return nil, nil, &model.DataError{Field: "phone_breakdown", Reason: "empty partition"}
	}

	type acc struct {
		group    model.PhoneGroup
		preRev   float64
		postRev  float64
		preDays  map[int64]bool
		postDays map[int64]bool
	}
	byPhone := make(map[string]*acc)
	var lastDate time.Time

	for _, o := range obs {
		a, ok := byPhone[o.PhoneNumber]
		if !ok {
			a = &acc{
				group:    model.PhoneGroup{PhoneNumber: o.PhoneNumber, FirstSeen: o.Date, LastSeen: o.Date},
				preDays:  make(map[int64]bool),
				postDays: make(map[int64]bool),
			}
			byPhone[o.PhoneNumber] = a
		}
		if o.Date.Before(a.group.FirstSeen) {
			a.group.FirstSeen = o.Date
		}
		if o.Date.After(a.group.LastSeen) {
			a.group.LastSeen = o.Date
		}
		if o.Date.After(lastDate) {
			lastDate = o.Date
		}
		if o.Partition == model.PreDecline {
			a.preRev += o.Revenue
			a.preDays[o.Date.Unix()] = true
		} else {
			a.postRev += o.Revenue
			a.postDays[o.Date.Unix()] = true
		}
	}

	numbers := make([]string, 0, len(byPhone))
	for n := range byPhone {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return lessID(numbers[i], numbers[j]) })

	var totalDelta float64
	groups := make([]model.PhoneGroup, 0, len(numbers))
	for i, n := range numbers {
		a := byPhone[n]
		g := a.group
		g.Label = fmt.Sprintf("Phone_%d", i+1)
		g.PreActiveDays = len(a.preDays)
		g.PostActiveDays = len(a.postDays)
		g.PreRevenuePerDay = a.preRev / float64(pre.Days)
		g.PostRevenuePerDay = a.postRev / float64(post.Days)
		g.Delta = g.PostRevenuePerDay - g.PreRevenuePerDay
		switch {
		case g.PostActiveDays == 0:
			g.Status = model.PhoneRetired
		case g.LastSeen.Before(lastDate):
			g.Status = model.PhoneDiscontinued
		default:
			g.Status = model.PhoneActive
		}
		totalDelta += g.Delta
		groups = append(groups, g)
	}

	if totalDelta == 0 {
		return nil, nil, &model.DataError{Field: "phone_breakdown", Reason: "no revenue change to attribute"}
	}

	rollups := make(map[model.PhoneStatus]*model.StatusRollup)
	for i := range groups {
		g := &groups[i]
		g.SharePct = g.Delta / totalDelta * 100

		r, ok := rollups[g.Status]
		if !ok {
			r = &model.StatusRollup{Status: g.Status}
			rollups[g.Status] = r
		}
		r.Phones++
		r.PreRevenuePerDay += g.PreRevenuePerDay
		r.PostRevenuePerDay += g.PostRevenuePerDay
		r.Delta += g.Delta
	}

	var out []model.StatusRollup
	for _, s := range []model.PhoneStatus{model.PhoneActive, model.PhoneDiscontinued, model.PhoneRetired} {
		if r, ok := rollups[s]; ok {
			r.SharePct = r.Delta / totalDelta * 100
			out = append(out, *r)
		}
	}
	return groups, out, nil
}

// lessID orders numeric identifiers numerically and everything else lexically.
func lessID(a, b string) bool {
	if isDigits(a) && isDigits(b) && len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
