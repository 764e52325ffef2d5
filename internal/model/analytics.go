package model

// RankBy selects the grouping of a production ranking.
type RankBy string

const (
	RankDoctors    RankBy = "doctors"
	RankHospitals  RankBy = "hospitals"
	RankProcedures RankBy = "procedures"
)

// Ranked is one entry of a production ranking. TUSSCode is set for
// procedure rankings only.
type Ranked struct {
	Name     string `json:"name"`
	TUSSCode string `json:"tuss_code,omitempty"`
	Quantity int64  `json:"quantity"`
}

// MonthQuantity is the summed quantity of one calendar month (1-12).
type MonthQuantity struct {
	Month    int
	Quantity int64
}

// CatalogCounts are the registration totals shown on the admin dashboard.
// They ignore production filters.
type CatalogCounts struct {
	Hospitals int64 `json:"hospitals"`
	Doctors   int64 `json:"doctors"`
}

// HospitalRef is a hospital id with its display name.
type HospitalRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Dashboard aggregates production for administrators. Procedures is the
// summed quantity matching the filter. Monthly is indexed by month - 1.
type Dashboard struct {
	Period       string    `json:"period"`
	Totals       Totals    `json:"totals"`
	Monthly      [12]int64 `json:"monthly"`
	TopDoctors   []Ranked  `json:"top_doctors"`
	TopHospitals []Ranked  `json:"top_hospitals"`
}

// Totals are the headline numbers of the admin dashboard.
type Totals struct {
	CatalogCounts
	Procedures int64 `json:"procedures"`
}

// DoctorDashboard aggregates one doctor's own production.
type DoctorDashboard struct {
	Year            int              `json:"year"`
	Hospitals       []HospitalRef    `json:"hospitals"`
	HospitalsCount  int              `json:"hospitals_count"`
	ProceduresTotal int64            `json:"procedures_total"`
	Breakdown       []Ranked         `json:"procedures_breakdown"`
	Monthly         [12]int64        `json:"monthly"`
	Recent          []ProductionView `json:"recent"`
}

// MonthSeries spreads month rows over a 12-slot series. Rows outside 1-12
// are dropped.
func MonthSeries(rows []MonthQuantity) [12]int64 {
	var series [12]int64
	for _, r := range rows {
		if r.Month >= 1 && r.Month <= 12 {
			series[r.Month-1] = r.Quantity
		}
	}
	return series
}
