// Package verify decides the status of a submission from the event's identity and
// geofence policies. Evaluate never fails: every input yields a verdict.
package verify

import (
	"math"
	"strings"
)

const (
	EarthRadiusMeters = 6371000.0
	MinRadiusMeters   = 1.0
	MaxRadiusMeters   = 1000000.0
)

const (
	ReasonDuplicateClient  = "duplicate client id"
	ReasonNoLocation       = "no location provided"
	ReasonOutsideRadius    = "outside allowed radius"
	ReasonAlreadySubmitted = "already_submitted"
)

type Outcome string

const (
	Verified   Outcome = "verified"
	Suspicious Outcome = "suspicious"
	Rejected   Outcome = "rejected"
)

// Policy is the event's verification configuration.
type Policy struct {
	IdentityCheck  bool
	IdentityStrict bool
	Geofence       bool
	CenterLat      float64
	CenterLng      float64
	RadiusMeters   float64
}

// Point is a reported location.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Submission is what the verifier knows about one attempt.
type Submission struct {
	// PriorRecord reports whether the client id already has a record on the event.
	PriorRecord bool
	// Location is nil when the attendee denied the prompt or no fix was available.
	Location *Point
}

type Verdict struct {
	Outcome Outcome
	Reasons []string
}

// Reason joins the failing reasons for storage.
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, "; ")
}

// Evaluate applies identity then geofence. A strict identity collision rejects before the
// geofence is considered.
func Evaluate(p Policy, s Submission) Verdict {
	var reasons []string

	if p.IdentityCheck && s.PriorRecord {
		if p.IdentityStrict {
			return Verdict{Outcome: Rejected, Reasons: []string{ReasonAlreadySubmitted}}
		}
		reasons = append(reasons, ReasonDuplicateClient)
	}

	if p.Geofence {
		switch {
		case s.Location == nil:
			reasons = append(reasons, ReasonNoLocation)
		case !WithinRadius(*s.Location, Point{Lat: p.CenterLat, Lng: p.CenterLng}, p.RadiusMeters):
			reasons = append(reasons, ReasonOutsideRadius)
		}
	}

	if len(reasons) > 0 {
		return Verdict{Outcome: Suspicious, Reasons: reasons}
	}
	return Verdict{Outcome: Verified}
}

// ClampRadius bounds a configured radius to [1m, 1000km].
func ClampRadius(meters float64) float64 {
	if math.IsNaN(meters) || meters < MinRadiusMeters {
		return MinRadiusMeters
	}
	if meters > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return meters
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether p lies inside the circle around center. The radius is
// clamped first, so a zero radius still admits the exact center.
func WithinRadius(p, center Point, radiusMeters float64) bool {
	return Haversine(p, center) <= ClampRadius(radiusMeters)
}
