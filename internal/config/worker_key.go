package config

// WorkerKeyStruct names the Redis queues consumed by background workers.
type WorkerKeyStruct struct {
	PersistPartialQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistPartialQueue: "persist_partial_queue",
}
