package decision

// Action is the decision engine's verdict for one insight.
type Action string

const (
	ActionDeliverNow  Action = "deliver_now"  // send immediately
	ActionBatchReport Action = "batch_report" // hold for the next digest
	ActionQueueLater  Action = "queue_later"  // retry on a later tick
	ActionSkip        Action = "skip"         // drop, counted only
)
