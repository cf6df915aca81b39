// Package domain models the weather station's data: observations fetched
// from OpenWeatherMap, the Wi-Fi connection lifecycle, and the real-time
// clock register written after a network time sync.
//
// # Weather records
//
// A [WeatherRecord] is a fixed-arity tuple of optional slots, in this order:
//
//	temperature, pressure, humidity, wind speed,
//	description, condition, icon
//
// Wind direction rides along outside the tuple: it is logged and published
// when present but never decides whether a record is complete.
//
// Every slot is a pointer; nil means the upstream response did not carry the
// field. The record with every slot nil ([EmptyRecord]) is the "no data"
// sentinel. It is also what a legitimately sparse response would produce,
// so consumers that need to know why there is no data read the error carried
// alongside it in an [Observation] instead of inspecting the record.
//
// Consumers that need every value (the display panel, message publishers)
// check [WeatherRecord.IsComplete] and treat partial records as no data.
//
// # Local time
//
// The station shows Central European time. The offset is derived from UTC
// with the EU rule rather than a tz database:
//
//	last Sunday of March   01:00 UTC  →  +2h (CEST) starts, inclusive
//	last Sunday of October 01:00 UTC  →  +1h (CET)  resumes, exclusive
//
// # RTC register
//
// [RTCDateTime] mirrors the board clock layout:
//
//	(year, month, day, weekday, hour, minute, second, subsecond)
//
// with weekday counted 1..7 from Monday and subsecond always 0.
package domain
