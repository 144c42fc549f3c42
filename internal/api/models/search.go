package models

// SearchRequest is the body of POST /v1/routes:search.
type SearchRequest struct {
	// Origins are airport codes or names; at most 24 are searched.
	Origins []string `json:"origins" validate:"required,min=1,dive,required"`
	// Aircraft is an aircraft short name or name.
	Aircraft string `json:"aircraft" validate:"required,max=64"`
	// Constraint is a distance or flight time range, e.g. "3000..6000" or "..8h".
	Constraint string `json:"constraint,omitempty" validate:"max=64"`
	// TripsPerDay is "auto", "N" or "N!".
	TripsPerDay string `json:"tripsPerDay,omitempty" validate:"max=8"`
	// ConfigAlgorithm selects how seats or cargo are allocated.
	ConfigAlgorithm string `json:"configAlgorithm,omitempty" validate:"max=16"`
	// GameMode is EASY or REALISM (default EASY).
	GameMode string `json:"gameMode,omitempty" validate:"omitempty,oneof=EASY REALISM easy realism"`
}

// SearchResponse is the primary result view of a search.
type SearchResponse struct {
	// SessionID is empty when nothing was found and no session was opened.
	SessionID   string        `json:"sessionId,omitempty"`
	Title       string        `json:"title"`
	Query       QueryEcho     `json:"query"`
	Message     string        `json:"message,omitempty"`
	Routes      []RouteView   `json:"routes"`
	Page        PageMeta      `json:"page"`
	Footer      Footer        `json:"footer"`
	Advisories  []Advisory    `json:"advisories,omitempty"`
	Affordances Affordances   `json:"affordances"`
	ExpiresAt   *Timestamp    `json:"expiresAt,omitempty"`
	Links       *SessionLinks `json:"links,omitempty"`
}

// QueryEcho is the normalised request the search ran with.
type QueryEcho struct {
	Origins         []string `json:"origins"`
	Aircraft        string   `json:"aircraft"`
	Constraint      string   `json:"constraint"`
	TripsPerDay     string   `json:"tripsPerDay"`
	ConfigAlgorithm string   `json:"configAlgorithm"`
	GameMode        string   `json:"gameMode"`
	SortBy          string   `json:"sortBy"`
}

// AirportRef identifies an airport in a route.
type AirportRef struct {
	Code    string  `json:"code"`
	IATA    string  `json:"iata,omitempty"`
	ICAO    string  `json:"icao,omitempty"`
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ClassValues holds per-class integers (Y/J/F for passengers, L/H for cargo).
type ClassValues struct {
	Y int `json:"y,omitempty"`
	J int `json:"j,omitempty"`
	F int `json:"f,omitempty"`
	L int `json:"l,omitempty"`
	H int `json:"h,omitempty"`
}

// ClassPrices holds per-class ticket prices.
type ClassPrices struct {
	Y float64 `json:"y,omitempty"`
	J float64 `json:"j,omitempty"`
	F float64 `json:"f,omitempty"`
	L float64 `json:"l,omitempty"`
	H float64 `json:"h,omitempty"`
}

// RouteView is one ranked route candidate.
type RouteView struct {
	Rank              int         `json:"rank"`
	Origin            *AirportRef `json:"origin,omitempty"`
	Destination       AirportRef  `json:"destination"`
	Stopover          *AirportRef `json:"stopover,omitempty"`
	DirectDistanceKM  float64     `json:"directDistanceKm"`
	FullDistanceKM    float64     `json:"fullDistanceKm"`
	FlightTimeH       float64     `json:"flightTimeH"`
	Demand            ClassValues `json:"demand"`
	Config            ClassValues `json:"config"`
	Ticket            ClassPrices `json:"ticket"`
	Contribution      float64     `json:"contribution"`
	TripsPerDayPerAC  int         `json:"tripsPerDayPerAc"`
	NumAircraft       int         `json:"numAc"`
	ProfitPerTrip     float64     `json:"profitPerTrip"`
	ProfitPerDayPerAC float64     `json:"profitPerDayPerAc"`
	IncomePerTrip     float64     `json:"incomePerTrip"`
	FuelPerTrip       float64     `json:"fuelPerTrip"`
	CO2PerTrip        float64     `json:"co2PerTrip"`
	RepairCostPerTrip float64     `json:"repairCostPerTrip"`
}

// PageMeta locates a page within the result set. To is exclusive.
type PageMeta struct {
	From    int  `json:"from"`
	To      int  `json:"to"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Footer summarises a search.
type Footer struct {
	Count            int     `json:"count"`
	ElapsedMS        float64 `json:"elapsedMs"`
	SortBy           string  `json:"sortBy"`
	SortLabel        string  `json:"sortLabel"`
	Top10DailyProfit float64 `json:"top10DailyProfit"`
	Top30DailyProfit float64 `json:"top30DailyProfit"`
}

// Advisory is an informational warning about the requested schedule.
type Advisory struct {
	Kind                 string   `json:"kind"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Equivalent           string   `json:"equivalent,omitempty"`
	SuggestedTripsPerDay *int     `json:"suggestedTripsPerDay,omitempty"`
	SuggestedFlightTimeH *float64 `json:"suggestedFlightTimeH,omitempty"`
	SuggestedDistanceKM  *float64 `json:"suggestedDistanceKm,omitempty"`
}
