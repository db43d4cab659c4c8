package report

type ReportServiceAPI interface {
	Naming(req NamingRequest) (*ComplianceReport, error)
	FillRate(modelID uint) ([]FillRateRow, error)
	Cobie(modelName string) (*FillRateReport, error)
}
