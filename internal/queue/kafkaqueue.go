package queue

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// AuthMechanism selects a SASL mechanism for KafkaQueue.
type AuthMechanism string

const (
	AuthNone       AuthMechanism = ""
	AuthPlain      AuthMechanism = "plain"
	AuthSCRAMSHA256 AuthMechanism = "scram-sha-256"
	AuthSCRAMSHA512 AuthMechanism = "scram-sha-512"
)

// Config configures a KafkaQueue.
type Config struct {
	Brokers   []string
	Mechanism AuthMechanism
	Username  string
	Password  string
}

// KafkaQueue is the multi-machine Queue transport: task assignments
// and heartbeats go over Kafka topics instead of in-process channels,
// letting a session's collector, workers, and merge step run as
// separate processes or hosts. *Grounded on* the teacher's
// internal/sinks/kafka_sink.go producer setup (SASL config block,
// AsyncProducer) and internal/sinks/kafka_scram.go's SCRAM client
// shim, repurposed from one-directional log shipping to a
// bidirectional task queue.
type KafkaQueue struct {
	config   Config
	producer sarama.AsyncProducer
	client   sarama.Client
	logger   *logrus.Logger
}

// NewKafkaQueue dials brokers and prepares a producer. Consume opens
// one sarama.Consumer per call since the task manager only ever needs
// a single reader per topic per process (no consumer-group rebalance
// concerns for this engine's fan-out model).
func NewKafkaQueue(config Config, logger *logrus.Logger) (*KafkaQueue, error) {
	if logger == nil {
		logger = logrus.New()
	}
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal

	if err := applyAuth(saramaConfig, config); err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("queue: connect to brokers: %w", err)
	}
	producer, err := sarama.NewAsyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("queue: create producer: %w", err)
	}

	q := &KafkaQueue{config: config, producer: producer, client: client, logger: logger}
	go q.drainProducerErrors()
	return q, nil
}

func applyAuth(saramaConfig *sarama.Config, config Config) error {
	if config.Mechanism == AuthNone {
		return nil
	}
	saramaConfig.Net.SASL.Enable = true
	saramaConfig.Net.SASL.User = config.Username
	saramaConfig.Net.SASL.Password = config.Password

	switch config.Mechanism {
	case AuthPlain:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case AuthSCRAMSHA256:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha256Generator}
		}
	case AuthSCRAMSHA512:
		saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha512Generator}
		}
	default:
		return fmt.Errorf("queue: unknown SASL mechanism %q", config.Mechanism)
	}
	return nil
}

func (q *KafkaQueue) drainProducerErrors() {
	for err := range q.producer.Errors() {
		q.logger.WithError(err).Warn("queue: publish failed")
	}
}

// Publish sends msg to topic, keyed by msg.Key for partition affinity
// (same task id always lands on the same partition).
func (q *KafkaQueue) Publish(ctx context.Context, topic string, msg Message) error {
	select {
	case q.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
	}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume opens a consumer reading topic from the oldest retained
// offset and streams messages onto the returned channel until ctx is
// canceled, at which point the channel is closed.
func (q *KafkaQueue) Consume(ctx context.Context, topic string) (<-chan Message, error) {
	consumer, err := sarama.NewConsumerFromClient(q.client)
	if err != nil {
		return nil, fmt.Errorf("queue: create consumer: %w", err)
	}
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("queue: list partitions for %s: %w", topic, err)
	}

	out := make(chan Message, 256)
	var partitionConsumers []sarama.PartitionConsumer
	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetOldest)
		if err != nil {
			consumer.Close()
			return nil, fmt.Errorf("queue: consume partition %d of %s: %w", p, topic, err)
		}
		partitionConsumers = append(partitionConsumers, pc)
		go func(pc sarama.PartitionConsumer) {
			for msg := range pc.Messages() {
				select {
				case out <- Message{Key: string(msg.Key), Value: msg.Value}:
				case <-ctx.Done():
					return
				}
			}
		}(pc)
	}

	go func() {
		<-ctx.Done()
		for _, pc := range partitionConsumers {
			pc.Close()
		}
		consumer.Close()
		close(out)
	}()

	return out, nil
}

// Close shuts down the producer and the underlying client connection.
func (q *KafkaQueue) Close() error {
	if err := q.producer.Close(); err != nil {
		return err
	}
	return q.client.Close()
}
