package bimmodel

type ModelServiceAPI interface {
	GetByName(name string) (*BimModel, error)
	GetOrCreate(name string) (*BimModel, error)
	RecordVersion(name string, rec VersionRecord) error
	MarkProcessed(modelID uint, version int) error
	History(name string) ([]BimModelVersion, error)
	List(tender string) ([]BimModel, error)
	ModelsByID(ids []uint) (map[uint]BimModel, error)
}
