package config

import "github.com/segmentio/kafka-go"

// NewKafkaWriter builds the writer for order event publishing. Callers pass
// the broker list from Config; an empty list means publishing is disabled and
// no writer should be created.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}
