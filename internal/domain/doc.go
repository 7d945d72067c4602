// Package domain models the earthquake prediction and proximity data shared by
// both services.
//
// # Feature Transform
//
// The classifier was trained on four seismic features, in this order:
//
//	speed, dist, other1, other2
//
// Each raw value v is shifted by one and passed through a one-parameter Box-Cox
// power transform with a pre-fit exponent λ (see [TransformParams]):
//
//	x = v + 1
//	λ == 0:  ln(x)
//	λ != 0:  (x^λ - 1) / λ
//
// The transform is only defined for x > 0. Values at or below the boundary are
// rejected with a [TransformError]; they are never clamped.
//
// # Earthquake Feed
//
// Recent earthquakes come from the USGS GeoJSON summary feeds, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson.
// Each feature carries properties.place, properties.mag and
// geometry.coordinates = [lon, lat, depth]. The feed is read once at startup
// into a [FeedSnapshot] and never refreshed.
//
// # Fault Lines
//
// Fault-line datasets are GeoJSON feature collections. Only LineString
// geometries contribute; every vertex becomes one fault point. Distance to a
// fault is approximated by the distance to its nearest vertex.
//
// # Errors
//
// Failures are reported with the sentinel kinds [ErrValidation],
// [ErrTransform], [ErrInference], [ErrDataLoad] and [ErrFeedFetch] so callers
// can branch with errors.Is instead of matching messages.
package domain
