package pipeline

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
)

// AggregateDaily groups transformed observations by date. Every day must have
// a positive send total, since revenue per send is part of the daily series.
func AggregateDaily(obs []model.Observation) ([]model.DailyAggregate, error) {
	byDate := make(map[int64]*model.DailyAggregate)
	phones := make(map[int64]map[string]bool)

	for _, o := range obs {
		key := o.Date.Unix()
		day, ok := byDate[key]
		if !ok {
			day = &model.DailyAggregate{
				Date:      o.Date,
				DayNum:    o.DayNum,
				Partition: o.Partition,
			}
			byDate[key] = day
			phones[key] = make(map[string]bool)
		}
		day.Rows++
		day.Sent += o.Sent
		day.Delivered += o.Delivered
		day.Clicked += o.Clicked
		day.UniqueClicks += o.UniqueClicks
		day.Bounces += o.Bounces
		day.Refusals += o.Refusals
		day.Revenue += o.Revenue
		phones[key][o.PhoneNumber] = true
	}

	daily := make([]model.DailyAggregate, 0, len(byDate))
	for key, day := range byDate {
		if day.Sent == 0 {
			return nil, &model.DataError{
				Field:  "rev_per_sent",
				Reason: fmt.Sprintf("zero sends on %s", day.Date.Format("2006-01-02")),
			}
		}
		day.RevPerSent = day.Revenue / day.Sent
		day.Phones = len(phones[key])
		daily = append(daily, *day)
	}
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date.Before(daily[j].Date)
	})

	logger.Log.WithFields(logrus.Fields{
		"stage": model.StageAggregate,
		"days":  len(daily),
	}).Info("📊 Daily aggregation complete")
	return daily, nil
}

// SplitTotals pools the observations of each partition. An empty partition is
// a *model.DataError.
func SplitTotals(obs []model.Observation) (pre, post model.PartitionTotals, err error) {
	pre.Partition = model.PreDecline
	post.Partition = model.PostDecline

	days := map[model.Partition]map[int64]bool{model.PreDecline: {}, model.PostDecline: {}}
	phones := map[model.Partition]map[string]bool{model.PreDecline: {}, model.PostDecline: {}}

	for _, o := range obs {
		t := &pre
		if o.Partition == model.PostDecline {
			t = &post
		}
		t.Rows++
		t.Sent += o.Sent
		t.Delivered += o.Delivered
		t.Clicked += o.Clicked
		t.Revenue += o.Revenue
		days[o.Partition][o.Date.Unix()] = true
		phones[o.Partition][o.PhoneNumber] = true
	}

	pre.Days, post.Days = len(days[model.PreDecline]), len(days[model.PostDecline])
	pre.Phones, post.Phones = len(phones[model.PreDecline]), len(phones[model.PostDecline])

	if pre.Rows == 0 {
		return pre, post, &model.DataError{Field: string(model.PreDecline), Reason: "empty partition"}
	}
	if post.Rows == 0 {
		return pre, post, &model.DataError{Field: string(model.PostDecline), Reason: "empty partition"}
	}
	return pre, post, nil
}
