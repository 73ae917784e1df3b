package model

import "time"

// Partition labels a side of the split date
type Partition string

const (
	PreDecline  Partition = "Pre-Decline"
	PostDecline Partition = "Post-Decline"
)

// PartitionOf returns the partition a date belongs to.
func PartitionOf(date time.Time) Partition {
	if date.Before(SplitDate) {
		return PreDecline
	}
	return PostDecline
}

// Observation is one row of the delivery report
type Observation struct {
	Row          int       `json:"row"` // 1-based data row in the source file
	Date         time.Time `json:"date"`
	Carrier      string    `json:"carrier"`
	Segment      string    `json:"segment"`
	PhoneNumber  string    `json:"phone_number"`
	Sent         float64   `json:"sent"`
	Delivered    float64   `json:"delivered"`
	Clicked      float64   `json:"clicked"`
	UniqueClicks float64   `json:"unique_clicks,omitempty"`
	Bounces      float64   `json:"bounces,omitempty"`
	Refusals     float64   `json:"refusals,omitempty"`
	Revenue      float64   `json:"revenue"`

	// Derived during transformation
	DayNum    int       `json:"day_num"`
	Partition Partition `json:"partition"`
}

// DailyAggregate holds per-day sums across all rows of that day
type DailyAggregate struct {
	Date         time.Time `json:"date"`
	DayNum       int       `json:"day_num"`
	Partition    Partition `json:"partition"`
	Rows         int       `json:"rows"`
	Sent         float64   `json:"sent"`
	Delivered    float64   `json:"delivered"`
	Clicked      float64   `json:"clicked"`
	UniqueClicks float64   `json:"unique_clicks"`
	Bounces      float64   `json:"bounces"`
	Refusals     float64   `json:"refusals"`
	Revenue      float64   `json:"revenue"`
	RevPerSent   float64   `json:"rev_per_sent"`
	Phones       int       `json:"phones"` // distinct phone numbers active that day
}

// PartitionTotals holds the pooled sums of one partition
type PartitionTotals struct {
	Partition Partition `json:"partition"`
	Days      int       `json:"days"`
	Rows      int       `json:"rows"`
	Phones    int       `json:"phones"`
	Sent      float64   `json:"sent"`
	Delivered float64   `json:"delivered"`
	Clicked   float64   `json:"clicked"`
	Revenue   float64   `json:"revenue"`
}

// ComparisonRow is one line of the pre/post results table
type ComparisonRow struct {
	Metric    string  `json:"metric"`
	Pre       float64 `json:"pre"`
	Post      float64 `json:"post"`
	PctChange float64 `json:"pct_change"`
}

// Decomposition splits the change in mean daily revenue into volume and efficiency
type Decomposition struct {
	PreRevenuePerDay   float64 `json:"pre_revenue_per_day"`
	PostRevenuePerDay  float64 `json:"post_revenue_per_day"`
	TotalDelta         float64 `json:"total_delta"`
	TotalDeltaPct      float64 `json:"total_delta_pct"` // relative to pre revenue/day
	PreSendsPerDay     float64 `json:"pre_sends_per_day"`
	PostSendsPerDay    float64 `json:"post_sends_per_day"`
	PreRevPerSend      float64 `json:"pre_rev_per_send"`
	PostRevPerSend     float64 `json:"post_rev_per_send"`
	VolumeEffect       float64 `json:"volume_effect"`
	VolumeSharePct     float64 `json:"volume_share_pct"`
	EfficiencyEffect   float64 `json:"efficiency_effect"`
	EfficiencySharePct float64 `json:"efficiency_share_pct"`
}

// PhoneStatus classifies a phone number by its post-split activity
type PhoneStatus string

const (
	PhoneActive       PhoneStatus = "active"
	PhoneDiscontinued PhoneStatus = "discontinued" // active after the split but gone by the last day
	PhoneRetired      PhoneStatus = "retired"      // no post-split activity at all
)

// PhoneGroup is the per-phone-number revenue attribution
type PhoneGroup struct {
	PhoneNumber       string      `json:"phone_number"`
	Label             string      `json:"label"` // Phone_1..Phone_n in sorted number order
	Status            PhoneStatus `json:"status"`
	FirstSeen         time.Time   `json:"first_seen"`
	LastSeen          time.Time   `json:"last_seen"`
	PreActiveDays     int         `json:"pre_active_days"`
	PostActiveDays    int         `json:"post_active_days"`
	PreRevenuePerDay  float64     `json:"pre_revenue_per_day"`
	PostRevenuePerDay float64     `json:"post_revenue_per_day"`
	Delta             float64     `json:"delta"`
	SharePct          float64     `json:"share_pct"` // Delta / total delta * 100
}

// StatusRollup sums phone contributions per status
type StatusRollup struct {
	Status            PhoneStatus `json:"status"`
	Phones            int         `json:"phones"`
	PreRevenuePerDay  float64     `json:"pre_revenue_per_day"`
	PostRevenuePerDay float64     `json:"post_revenue_per_day"`
	Delta             float64     `json:"delta"`
	SharePct          float64     `json:"share_pct"`
}

// Coefficient is one fitted parameter of a linear model
type Coefficient struct {
	Factor   string  `json:"factor"`
	Estimate float64 `json:"coefficient"`
	StdError float64 `json:"std_error"`
	TStat    float64 `json:"t_stat"`
	PValue   float64 `json:"p_value"`
	Sig      string  `json:"sig"`
}

// RegressionResult is a fitted OLS model
type RegressionResult struct {
	Model        string            `json:"model"`
	Formula      string            `json:"formula"`
	N            int               `json:"n"`
	DF           int               `json:"df"`
	Coefficients []Coefficient     `json:"coefficients"`
	RSquared     float64           `json:"r_squared"`
	AdjRSquared  float64           `json:"adj_r_squared"`
	References   map[string]string `json:"references,omitempty"` // categorical column -> held-out level
}

// Coefficient returns the named coefficient.
func (r *RegressionResult) Coefficient(factor string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Factor == factor {
			return c, true
		}
	}
	return Coefficient{}, false
}

// Report is the complete output of one analysis run
type Report struct {
	Rows          int                `json:"rows"`
	ExcludedRows  int                `json:"excluded_rows"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	SplitDate     time.Time          `json:"split_date"`
	Daily         []DailyAggregate   `json:"daily"`
	Pre           PartitionTotals    `json:"pre"`
	Post          PartitionTotals    `json:"post"`
	Comparison    []ComparisonRow    `json:"comparison"`
	Decomposition Decomposition      `json:"decomposition"`
	Phones        []PhoneGroup       `json:"phones"`
	StatusRollup  []StatusRollup     `json:"status_rollup"`
	Models        []RegressionResult `json:"models"`
}

// Model returns the named regression result.
func (r *Report) Model(name string) (*RegressionResult, bool) {
	for i := range r.Models {
		if r.Models[i].Model == name {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type      string    `json:"type"` // "csv", "json", "png"
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
