package core

import "math"

const speedOfLight = 299_792_458.0 // m/s

// ChannelParams configures the propagation model. Zero values fall back to
// the documented defaults, so ChannelParams{} is a usable configuration.
type ChannelParams struct {
	// CarrierFrequencyHz is the carrier frequency. Default 2 GHz.
	CarrierFrequencyHz float64

	// B1 and B2 are the environment coefficients of the logistic
	// line-of-sight probability model. Defaults 0.36 and 0.21 (urban).
	B1 float64
	B2 float64

	// ExcessLossLoSdB and ExcessLossNLoSdB are the fixed excess path-loss
	// terms added on top of free-space loss for LoS and NLoS air-to-ground
	// propagation. Defaults 1 dB and 20 dB.
	ExcessLossLoSdB  float64
	ExcessLossNLoSdB float64

	// TerrestrialExponent is the log-distance path-loss exponent used for
	// ground-to-device links. Default 3.5.
	TerrestrialExponent float64

	// NoiseDensityWPerHz is the thermal noise power spectral density.
	// Default 4e-21 W/Hz (about -174 dBm/Hz).
	NoiseDensityWPerHz float64
}

func (p ChannelParams) withDefaults() ChannelParams {
	if p.CarrierFrequencyHz == 0 {
		p.CarrierFrequencyHz = 2e9
	}
	if p.B1 == 0 {
		p.B1 = 0.36
	}
	if p.B2 == 0 {
		p.B2 = 0.21
	}
	if p.ExcessLossLoSdB == 0 {
		p.ExcessLossLoSdB = 1.0
	}
	if p.ExcessLossNLoSdB == 0 {
		p.ExcessLossNLoSdB = 20.0
	}
	if p.TerrestrialExponent == 0 {
		p.TerrestrialExponent = 3.5
	}
	if p.NoiseDensityWPerHz == 0 {
		p.NoiseDensityWPerHz = 4e-21
	}
	return p
}

// ChannelModel computes propagation path loss, channel gain and SNR/SINR
// for air-to-ground and ground-to-device links. All methods are pure.
type ChannelModel struct {
	params ChannelParams
}

// NewChannelModel builds a channel model, applying defaults for any zero
// parameter.
func NewChannelModel(params ChannelParams) *ChannelModel {
	return &ChannelModel{params: params.withDefaults()}
}

// Params returns the effective (default-filled) parameters.
func (m *ChannelModel) Params() ChannelParams { return m.params }

// LoSProbability returns the probability of a line-of-sight air-to-ground
// link as a logistic function of the elevation angle in degrees.
func (m *ChannelModel) LoSProbability(elevationDeg float64) float64 {
	return 1.0 / (1.0 + m.params.B1*math.Exp(-m.params.B2*(elevationDeg-m.params.B1)))
}

// freeSpacePathLossDB returns FSPL in dB for a distance in metres at the
// configured carrier frequency. Distances below one metre are clamped so
// the logarithm stays finite for co-located endpoints.
func (m *ChannelModel) freeSpacePathLossDB(distanceM float64) float64 {
	if distanceM < 1 {
		distanceM = 1
	}
	return 20 * math.Log10(4*math.Pi*distanceM*m.params.CarrierFrequencyHz/speedOfLight)
}

// AirToGroundPathLossDB returns the expected path loss of a drone-to-user
// link: free-space loss plus the LoS/NLoS excess terms weighted by the
// line-of-sight probability at the given geometry.
func (m *ChannelModel) AirToGroundPathLossDB(station, user Position3D) float64 {
	dist := station.DistanceTo(user)
	elev := ElevationAngleDeg(user, station)
	pLoS := m.LoSProbability(elev)
	fspl := m.freeSpacePathLossDB(dist)
	return fspl + pLoS*m.params.ExcessLossLoSdB + (1-pLoS)*m.params.ExcessLossNLoSdB
}

// TerrestrialPathLossDB returns the log-distance path loss of a ground
// station to user link.
func (m *ChannelModel) TerrestrialPathLossDB(station, user Position3D) float64 {
	dist := station.DistanceTo(user)
	if dist < 1 {
		dist = 1
	}
	// Reference loss at d0 = 1 m is plain free-space loss.
	return m.freeSpacePathLossDB(1) + 10*m.params.TerrestrialExponent*math.Log10(dist)
}

// PathLossDB selects the propagation branch for the station variant.
func (m *ChannelModel) PathLossDB(s StationInfo, userPos Position3D) float64 {
	if s.Kind == StationKindDrone {
		return m.AirToGroundPathLossDB(s.Pos, userPos)
	}
	return m.TerrestrialPathLossDB(s.Pos, userPos)
}

// ChannelGain converts a path loss in dB into a linear power gain.
func ChannelGain(pathLossDB float64) float64 {
	return math.Pow(10, -pathLossDB/10)
}

// SNR returns the signal-to-noise ratio of a station-to-user link.
func (m *ChannelModel) SNR(s StationInfo, userPos Position3D) float64 {
	if s.BandwidthHz <= 0 {
		return 0
	}
	gain := ChannelGain(m.PathLossDB(s, userPos))
	noise := m.params.NoiseDensityWPerHz * s.BandwidthHz
	return s.PowerW * gain / noise
}

// SINR returns the signal-to-interference-plus-noise ratio, where the
// interference term sums the received power from every other station in
// the interferer set (the serving station is skipped by ID).
func (m *ChannelModel) SINR(s StationInfo, userPos Position3D, interferers []StationInfo) float64 {
	if s.BandwidthHz <= 0 {
		return 0
	}
	gain := ChannelGain(m.PathLossDB(s, userPos))
	noise := m.params.NoiseDensityWPerHz * s.BandwidthHz
	interference := 0.0
	for _, other := range interferers {
		if other.ID == s.ID {
			continue
		}
		interference += other.PowerW * ChannelGain(m.PathLossDB(other, userPos))
	}
	return s.PowerW * gain / (noise + interference)
}
