package logs

type LogServiceAPI interface {
	Log(entry SystemLog, metadata interface{}) error
	GetLogs(input LogFilterInput) (*LogPage, error)
}
