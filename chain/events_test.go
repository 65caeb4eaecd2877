package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shieldnet/validator/protocol"
)

func TestTopicRoundTrip(t *testing.T) {
	kinds := []protocol.EventKind{
		protocol.EventKeyGen, protocol.EventKeyGenCommitted, protocol.EventKeyGenSecretShared,
		protocol.EventKeyGenComplained, protocol.EventKeyGenComplaintResponded, protocol.EventKeyGenConfirmed,
		protocol.EventPreprocess, protocol.EventSign, protocol.EventSignRevealedNonces,
		protocol.EventSignShared, protocol.EventSignCompleted, protocol.EventEpochProposed,
		protocol.EventEpochStaged, protocol.EventTransactionProposed, protocol.EventTransactionAttested,
	}
	for _, k := range kinds {
		topic := Topic(k)
		got, ok := KindForTopic(topic)
		assert.True(t, ok, "kind %s should resolve back from its topic", k)
		assert.Equal(t, k, got)
	}
}

func TestTopicsAreDistinct(t *testing.T) {
	seen := make(map[string]protocol.EventKind)
	for k := range topics {
		topic := Topic(k)
		if prev, ok := seen[topic.Hex()]; ok {
			t.Fatalf("topic collision between %s and %s", prev, k)
		}
		seen[topic.Hex()] = k
	}
}

func TestAllTopicsCoversEveryKind(t *testing.T) {
	assert.Len(t, AllTopics(), len(topics))
}
