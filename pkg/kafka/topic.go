package kafka

import "fmt"

// TopicPrefix is the standard prefix for all marketsearch Kafka topics.
const TopicPrefix = "marketsearch"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
