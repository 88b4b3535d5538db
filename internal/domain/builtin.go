package domain

// RequestStatus codes written by the staging service.
const (
	RequestCreated   int64 = 100
	RequestSubmitted int64 = 110
	RequestQueued    int64 = 120
	RequestStaged    int64 = 140
	RequestOnDisk    int64 = 150
	RequestFailed    int64 = 160
	RequestInvalid   int64 = 180
)

// QueueStatus codes written by the staging service.
const (
	QueueCreated   int64 = 200
	QueueActivated int64 = 210
	QueueSuspended int64 = 220
	QueueEnded     int64 = 230
	QueueAborted   int64 = 240
)

const (
	ExitRequestsFailed = -1
	ExitQueuesFailed   = -2
)

// Requests describes the requests table and its requests_history archive.
func Requests() *Descriptor {
	return &Descriptor{
		Name:             "requests",
		Table:            "requests",
		ArchiveTable:     "requests_history",
		PrimaryKey:       "id",
		StatusField:      "status",
		EligibleStatuses: []int64{RequestStaged, RequestOnDisk, RequestFailed, RequestInvalid},
		AgeField:         "end_time",
		ExitCode:         ExitRequestsFailed,
		Columns: []Column{
			{Name: "id", Type: Integer},
			{Name: "file", Type: String, Length: 1024},
			{Name: "creation_time", Type: Timestamp},
			{Name: "user", Type: String, Length: 32},
			{Name: "client", Type: String, Length: 32},
			{Name: "version", Type: String, Length: 32},
			{Name: "email", Type: String, Length: 64},
			{Name: "queue_id", Type: Integer},
			{Name: "tape", Type: String, Length: 8},
			{Name: "position", Type: Integer},
			{Name: "level", Type: Integer},
			{Name: "size", Type: Integer},
			{Name: "tries", Type: Integer},
			{Name: "errorcode", Type: Integer},
			{Name: "submission_time", Type: Timestamp},
			{Name: "queued_time", Type: Timestamp},
			{Name: "end_time", Type: Timestamp},
			{Name: "status", Type: Integer},
			{Name: "message", Type: String, Length: 254},
		},
	}
}

// Queues describes the queues table and its queues_history archive. Only
// ended queues are archived.
func Queues() *Descriptor {
	return &Descriptor{
		Name:             "queues",
		Table:            "queues",
		ArchiveTable:     "queues_history",
		PrimaryKey:       "id",
		StatusField:      "status",
		EligibleStatuses: []int64{QueueEnded},
		AgeField:         "end_time",
		ExitCode:         ExitQueuesFailed,
		Columns: []Column{
			{Name: "id", Type: Integer},
			{Name: "name", Type: String, Length: 12},
			{Name: "creation_time", Type: Timestamp},
			{Name: "mediatype_id", Type: Integer},
			{Name: "nb_reqs_failed", Type: Integer},
			{Name: "activation_time", Type: Timestamp},
			{Name: "end_time", Type: Timestamp},
			{Name: "status", Type: Integer},
			{Name: "nb_reqs", Type: Integer},
			{Name: "owner", Type: String, Length: 32},
			{Name: "byte_size", Type: Integer},
			{Name: "nb_reqs_done", Type: Integer},
		},
	}
}

// Builtin returns the built-in descriptors by name, in archival order.
func Builtin() []*Descriptor {
	return []*Descriptor{Requests(), Queues()}
}
