package core

import "math"

// RateEvaluator converts channel quality into a Shannon-capacity achievable
// rate for a (user, station) pair. It is a pure function of the snapshots it
// is handed; repeated calls with equal inputs return equal outputs.
type RateEvaluator struct {
	channel *ChannelModel
}

// NewRateEvaluator builds an evaluator over the given channel parameters.
func NewRateEvaluator(params ChannelParams) *RateEvaluator {
	return &RateEvaluator{channel: NewChannelModel(params)}
}

// Channel exposes the underlying channel model.
func (e *RateEvaluator) Channel() *ChannelModel { return e.channel }

// Rate returns the achievable rate in bit/s of the station-to-user link,
// bandwidth · log2(1 + SNR). Out-of-range pairs achieve rate 0.
func (e *RateEvaluator) Rate(s StationInfo, u UserInfo) float64 {
	if !s.InRange(u.Pos) {
		return 0
	}
	snr := e.channel.SNR(s, u.Pos)
	return shannonCapacity(s.BandwidthHz, snr)
}

// RateWithInterference is Rate with the SNR replaced by SINR against the
// given interferer set.
func (e *RateEvaluator) RateWithInterference(s StationInfo, u UserInfo, interferers []StationInfo) float64 {
	if !s.InRange(u.Pos) {
		return 0
	}
	sinr := e.channel.SINR(s, u.Pos, interferers)
	return shannonCapacity(s.BandwidthHz, sinr)
}

func shannonCapacity(bandwidthHz, snr float64) float64 {
	if bandwidthHz <= 0 || snr <= 0 {
		return 0
	}
	return bandwidthHz * math.Log2(1+snr)
}
