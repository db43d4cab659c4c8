package categorize

type CategoryServiceAPI interface {
	ReplaceForModel(modelID uint, candidates []Candidate) (int, error)
	ListForModel(modelID uint) ([]Category, error)
	Distinct() ([]CategoryOption, error)
}
