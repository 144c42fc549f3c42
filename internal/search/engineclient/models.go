package engineclient

// Wire types for the engine's /v1/routes/search endpoint.

type airportJSON struct {
	ID      int64   `json:"id"`
	IATA    string  `json:"iata"`
	ICAO    string  `json:"icao"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RunwayM int     `json:"runway_m"`
	HubCost float64 `json:"hub_cost"`
}

type aircraftJSON struct {
	ID        int64   `json:"id"`
	ShortName string  `json:"shortname"`
	Type      string  `json:"type"`
	SpeedKMH  float64 `json:"speed"`
	RangeKM   float64 `json:"range"`
	Capacity  int     `json:"capacity"`
	RunwayM   int     `json:"runway_m"`
}

type constraintJSON struct {
	MinDistance   *float64 `json:"min_distance,omitempty"`
	MaxDistance   *float64 `json:"max_distance,omitempty"`
	MinFlightTime *float64 `json:"min_flight_time_h,omitempty"`
	MaxFlightTime *float64 `json:"max_flight_time_h,omitempty"`
}

type tripsPerDayJSON struct {
	Value int    `json:"value"`
	Mode  string `json:"mode"`
}

type searchRequest struct {
	Origins         []airportJSON   `json:"origins"`
	Aircraft        aircraftJSON    `json:"aircraft"`
	Constraint      constraintJSON  `json:"constraint"`
	TripsPerDay     tripsPerDayJSON `json:"trips_per_day"`
	ConfigAlgorithm string          `json:"config_algorithm"`
	SortBy          string          `json:"sort_by"`
	GameMode        string          `json:"game_mode"`
}

type classesJSON struct {
	Y float64 `json:"y"`
	J float64 `json:"j"`
	F float64 `json:"f"`
	L float64 `json:"l"`
	H float64 `json:"h"`
}

type routeJSON struct {
	OriginID          int64        `json:"origin_id"`
	Destination       airportJSON  `json:"destination"`
	Stopover          *airportJSON `json:"stopover,omitempty"`
	DirectDistance    float64      `json:"direct_distance"`
	FullDistance      float64      `json:"full_distance"`
	FlightTime        float64      `json:"flight_time_h"`
	Demand            classesJSON  `json:"demand"`
	Config            classesJSON  `json:"config"`
	Ticket            classesJSON  `json:"ticket"`
	Contribution      float64      `json:"contribution"`
	TripsPerDayPerAC  int          `json:"trips_per_day_per_ac"`
	NumAircraft       int          `json:"num_ac"`
	ProfitPerTrip     float64      `json:"profit_per_trip"`
	IncomePerTrip     float64      `json:"income_per_trip"`
	FuelPerTrip       float64      `json:"fuel_per_trip"`
	CO2PerTrip        float64      `json:"co2_per_trip"`
	RepairCostPerTrip float64      `json:"repair_cost_per_trip"`
}

type searchResponse struct {
	Routes []routeJSON `json:"routes"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
