package region

type RegionServiceAPI interface {
	ReplaceForModel(modelID uint, regions []Region) (int, error)
	ListForModel(modelName string) ([]Region, error)
	Resolve(selectors []Selector) ([]Anchor, error)
}
