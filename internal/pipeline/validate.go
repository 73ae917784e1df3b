package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
)

// ValidateObservations checks every row against the categorical vocabularies
// and count constraints. The first offending row fails the whole dataset.
func ValidateObservations(obs []model.Observation, rules model.Validation) error {
	if len(obs) == 0 {
		return &model.DataError{Reason: "no observations after filtering"}
	}

	segments := rules.Segments
	if len(segments) == 0 {
		segments = model.KnownSegments
	}
	segmentSet := toSet(segments)
	carrierSet := toSet(rules.Carriers)

	for i := range obs {
		if err := validateObservation(&obs[i], carrierSet, segmentSet); err != nil {
			return err
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"stage": model.StageValidate,
		"valid": len(obs),
	}).Info("🔍 Validation complete")
	return nil
}

// validateObservation applies the rules to a single row.
func validateObservation(o *model.Observation, carriers, segments map[string]bool) error {
	if o.Carrier == "" {
		return &model.DataError{Row: o.Row, Field: colCarrier, Reason: "missing value"}
	}
	if len(carriers) > 0 && !carriers[o.Carrier] {
		return &model.DataError{Row: o.Row, Field: colCarrier, Reason: fmt.Sprintf("unknown carrier %q", o.Carrier)}
	}
	if !segments[o.Segment] {
		return &model.DataError{Row: o.Row, Field: colSegment, Reason: fmt.Sprintf("unknown segment %q", o.Segment)}
	}

	counts := []struct {
		field string
		value float64
	}{
		{colSent, o.Sent},
		{colDelivered, o.Delivered},
		{colClicked, o.Clicked},
		{colUniqueClicks, o.UniqueClicks},
		{colBounces, o.Bounces},
		{colRefusals, o.Refusals},
	}
	for _, c := range counts {
		if c.value < 0 {
			return &model.DataError{Row: o.Row, Field: c.field, Reason: fmt.Sprintf("negative count %v", c.value)}
		}
	}
	return nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
