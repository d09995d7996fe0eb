package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AuraReaper/voom/internal/models"
)

// LocationRecord is the topic schema for actor position updates.
type LocationRecord struct {
	ActorID  string            `json:"actor_id"`
	Location models.Coordinate `json:"location"`
	At       time.Time         `json:"at"`
}

// KafkaProducer streams location updates to the configured topic so the
// standalone consumer can maintain the shared Redis geohash index.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) PublishLocation(ctx context.Context, actorID string, c models.Coordinate) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(LocationRecord{ActorID: actorID, Location: c, At: time.Now()})
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(actorID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
