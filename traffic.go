package netpulse

// Backend resource paths served under the configured base URL.
const (
	ResourceTraffic = "network-traffic"
	ResourceStats   = "network-stats"
)

// TrafficPoint is one sample of the network-traffic time series.
type TrafficPoint struct {
	Timestamp  string  `json:"timestamp"`
	Throughput float64 `json:"throughput"`
	Latency    float64 `json:"latency"`
}

// NetworkStats holds the aggregate counters served by network-stats.
type NetworkStats struct {
	PacketsSent     int64   `json:"packetsSent"`
	PacketsReceived int64   `json:"packetsReceived"`
	ErrorRate       float64 `json:"errorRate"`
}
