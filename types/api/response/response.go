// Package response contains api response type
package response

// Endpoints lists the paths served by the api
type Endpoints struct {
	Endpoints []string `json:"endpoints"`
}

// Created is returned when a topic was created
type Created struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

// Topic describes one topic in a listing
type Topic struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
	Messages    int64  `json:"messages"`
	Dropped     int64  `json:"dropped"`
}

// Topics is the topic listing
type Topics struct {
	Topics []Topic `json:"topics"`
}

// Health reports aggregate broker counters
type Health struct {
	Topics      int `json:"topics"`
	Subscribers int `json:"subscribers"`
	Sessions    int `json:"sessions"`
}
