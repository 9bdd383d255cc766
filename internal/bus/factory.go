package bus

import (
	"fmt"
	"strings"

	"github.com/ricesearch/rice-facets/internal/config"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// NewBus creates the bus selected by the configuration, wrapped in an
// event log when one is configured.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	var b Bus

	switch strings.ToLower(cfg.Type) {
	case "none", "":
		b = Discard{}

	case "memory":
		b = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "rice-facets"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "rice-facets-bus",
			TopicPrefix:   cfg.KafkaTopicPrefix,
		}, log)
		if err != nil {
			return nil, err
		}
		b = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog != "" {
		events, err := OpenEventLog(cfg.EventLog)
		if err != nil {
			b.Close()
			return nil, err
		}
		b = Tapped(b, EventLogTap(events, log))
	}

	return b, nil
}
