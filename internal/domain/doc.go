// Package domain models NASA FIRMS fire detection data.
//
// # Data Source
//
// Detections come from the FIRMS (Fire Information for Resource Management
// System) area API, https://firms.modaps.eosdis.nasa.gov/api/area/, as CSV.
// Each tracked product (e.g. VIIRS_SNPP_NRT, VIIRS_NOAA20_NRT) is one
// satellite/sensor stream; overlapping products frequently report the same
// physical fire, which is why detections carry a natural key.
//
// # FIRMS CSV Conventions
//
// Column order varies across products and API versions, so columns are
// resolved by header name, never by position. The VIIRS near-real-time
// columns used here:
//
//	latitude, longitude  WGS-84 decimal degrees.
//	bright_ti4           Brightness temperature, VIIRS I-4 channel (Kelvin).
//	bright_ti5           Brightness temperature, VIIRS I-5 channel (Kelvin).
//	acq_date             Acquisition date, YYYY-MM-DD (UTC).
//	acq_time             Acquisition time, HHMM 24-hour UTC. Short values
//	                     are zero-padded: "134" means 01:34.
//	satellite            Platform code, e.g. "N" (Suomi NPP), "1" (NOAA-20).
//	instrument           Sensor name, e.g. "VIIRS".
//	confidence           Categorical: "l"/"n"/"h" (low/nominal/high) for
//	                     VIIRS, numeric for MODIS. Stored as free text,
//	                     defaulting to "Unknown".
//	version              Data collection/processing version.
//	frp                  Fire radiative power, megawatts.
//	daynight             "D" or "N", mapped to Daytime/Nighttime/Unknown.
//
// # Natural Key
//
// (acq_date, acq_time, latitude, longitude, satellite) uniquely identifies a
// detection. The tuple is the dedupe key within a cycle and the store's
// unique-index conflict target across cycles, so re-ingesting the same feed
// window is idempotent.
package domain
