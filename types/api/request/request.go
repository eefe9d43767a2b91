// Package request contains api request type
package request

// CreateTopic is the body of a topic creation request
type CreateTopic struct {
	Name string `json:"name"`
}
