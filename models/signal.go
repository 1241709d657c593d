package models

// Trend is the short-horizon momentum direction of a pair.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Direction is the rotation direction around a triangle.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)
