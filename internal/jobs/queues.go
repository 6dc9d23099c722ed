package jobs

import "slices"

// QueueName identifies one of the fixed pipeline queues.
type QueueName string

const (
	QueueAIAnalysis   QueueName = "ai-analysis"
	QueueEmbedding    QueueName = "embedding"
	QueueNotification QueueName = "notification"
	QueueFeedRefresh  QueueName = "feed-refresh"
	QueueSyncChain    QueueName = "sync-chain"
)

var queueNames = []QueueName{
	QueueAIAnalysis,
	QueueEmbedding,
	QueueNotification,
	QueueFeedRefresh,
	QueueSyncChain,
}

// QueueNames returns every queue in a stable order.
func QueueNames() []QueueName {
	return slices.Clone(queueNames)
}

// Valid reports whether q is one of the fixed queues.
func (q QueueName) Valid() bool {
	return slices.Contains(queueNames, q)
}

func (q QueueName) String() string {
	return string(q)
}
