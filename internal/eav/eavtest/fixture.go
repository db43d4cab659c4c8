// Package eavtest writes small derivative property databases for tests.
package eavtest

import (
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Prop struct {
	Category    string
	DisplayName string
	Value       string

	// Raw, when set, is stored instead of Value so numeric cells keep their
	// INTEGER or REAL storage class.
	Raw any
}

type Object struct {
	ID    int64
	Props []Prop
}

func Name(v string) Prop { return Prop{Category: "__name__", DisplayName: "Name", Value: v} }

func Parent(id int64) Prop {
	return Prop{Category: "__parent__", DisplayName: "parent", Value: strconv.FormatInt(id, 10)}
}

func Text(displayName, value string) Prop {
	return Prop{Category: "Identity Data", DisplayName: displayName, Value: value}
}

func Int(displayName string, v int64) Prop {
	return Prop{Category: "Constraints", DisplayName: displayName, Value: strconv.FormatInt(v, 10), Raw: v}
}

func Real(displayName string, v float64) Prop {
	return Prop{Category: "Dimensions", DisplayName: displayName, Value: strconv.FormatFloat(v, 'f', -1, 64), Raw: v}
}

var schema = []string{
	`CREATE TABLE _objects_id (id INTEGER PRIMARY KEY, external_id TEXT, viewable_id TEXT)`,
	`CREATE TABLE _objects_attr (id INTEGER PRIMARY KEY, name TEXT, category TEXT, data_type INTEGER, data_type_context TEXT, description TEXT, display_name TEXT, flags INTEGER, display_precision INTEGER)`,
	`CREATE TABLE _objects_val (id INTEGER PRIMARY KEY, value)`,
	`CREATE TABLE _objects_eav (id INTEGER PRIMARY KEY, entity_id INTEGER, attribute_id INTEGER, value_id INTEGER)`,
}

// Write creates a database at path holding objects.
func Write(t testing.TB, path string, objects []Object) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range schema {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}

		attrs := map[[2]string]int{}
		vals := map[string]int{}
		for _, o := range objects {
			if err := tx.Exec(`INSERT INTO _objects_id (id, external_id) VALUES (?, ?)`, o.ID, "ext-"+strconv.FormatInt(o.ID, 10)).Error; err != nil {
				return err
			}
			for _, p := range o.Props {
				ak := [2]string{p.Category, p.DisplayName}
				aid, ok := attrs[ak]
				if !ok {
					aid = len(attrs) + 1
					attrs[ak] = aid
					if err := tx.Exec(`INSERT INTO _objects_attr (id, name, category, display_name) VALUES (?, ?, ?, ?)`,
						aid, p.DisplayName, p.Category, p.DisplayName).Error; err != nil {
						return err
					}
				}
				var stored any = p.Value
				vk := "s:" + p.Value
				if p.Raw != nil {
					stored = p.Raw
					vk = "n:" + p.Value
				}
				vid, ok := vals[vk]
				if !ok {
					vid = len(vals) + 1
					vals[vk] = vid
					if err := tx.Exec(`INSERT INTO _objects_val (id, value) VALUES (?, ?)`, vid, stored).Error; err != nil {
						return err
					}
				}
				if err := tx.Exec(`INSERT INTO _objects_eav (entity_id, attribute_id, value_id) VALUES (?, ?, ?)`, o.ID, aid, vid).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
