package pipeline

import (
	"sms-decline-analysis/internal/model"
)

// Comparison table metrics, in output order.
const (
	MetricRevenuePerDay   = "revenue_per_day"
	MetricSendsPerDay     = "sends_per_day"
	MetricDeliveredPerDay = "delivered_per_day"
	MetricClicksPerDay    = "clicks_per_day"
	MetricDeliveryRate    = "delivery_rate"
	MetricCTR             = "click_through_rate"
	MetricRevenuePerSend  = "revenue_per_send"
	MetricRevenuePerClick = "revenue_per_click"
	MetricActivePhones    = "active_phone_numbers"
)

// Compare builds the pre/post table. Per-day metrics divide partition totals
// by the partition's distinct day count; ratios are pooled (total / total).
func Compare(pre, post model.PartitionTotals) ([]model.ComparisonRow, error) {
	type metric struct {
		name string
		num  func(model.PartitionTotals) float64
		den  func(model.PartitionTotals) float64
	}
	days := func(t model.PartitionTotals) float64 { return float64(t.Days) }
	sent := func(t model.PartitionTotals) float64 { return t.Sent }
	one := func(model.PartitionTotals) float64 { return 1 }

	metrics := []metric{
		{MetricRevenuePerDay, func(t model.PartitionTotals) float64 { return t.Revenue }, days},
		{MetricSendsPerDay, sent, days},
		{MetricDeliveredPerDay, func(t model.PartitionTotals) float64 { return t.Delivered }, days},
		{MetricClicksPerDay, func(t model.PartitionTotals) float64 { return t.Clicked }, days},
		{MetricDeliveryRate, func(t model.PartitionTotals) float64 { return t.Delivered }, sent},
		{MetricCTR, func(t model.PartitionTotals) float64 { return t.Clicked }, sent},
		{MetricRevenuePerSend, func(t model.PartitionTotals) float64 { return t.Revenue }, sent},
		{MetricRevenuePerClick, func(t model.PartitionTotals) float64 { return t.Revenue }, func(t model.PartitionTotals) float64 { return t.Clicked }},
		{MetricActivePhones, func(t model.PartitionTotals) float64 { return float64(t.Phones) }, one},
	}

	rows := make([]model.ComparisonRow, 0, len(metrics))
	for _, m := range metrics {
		preV, err := ratio(m.name, pre.Partition, m.num(pre), m.den(pre))
		if err != nil {
			return nil, err
		}
		postV, err := ratio(m.name, post.Partition, m.num(post), m.den(post))
		if err != nil {
			return nil, err
		}
		pct, err := PctChange(m.name, preV, postV)
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.ComparisonRow{Metric: m.name, Pre: preV, Post: postV, PctChange: pct})
	}
	return rows, nil
}

// PctChange is (post - pre) / pre * 100, signed. A zero pre value is a *model.DataError.
func PctChange(metric string, pre, post float64) (float64, error) {
	if pre == 0 {
		return 0, &model.DataError{Field: metric, Reason: "percentage change from a zero pre value"}
	}
	return (post - pre) / pre * 100, nil
}

func ratio(metric string, p model.Partition, num, den float64) (float64, error) {
	if den == 0 {
		return 0, &model.DataError{Field: metric, Reason: "zero denominator in " + string(p) + " partition"}
	}
	return num / den, nil
}
