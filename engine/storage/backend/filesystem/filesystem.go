package entitystoragefilesystem

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/storage/storage_common"
	"github.com/pkg/errors"
)

type fileSystemEntityStorage struct {
	directory string
}

// OpenDirectory opens a directory as entity storage, one JSON file per entity
func OpenDirectory(directory string) (storagecommon.EntityStorage, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Wrap(err, "create storage directory failed")
	}

	return &fileSystemEntityStorage{
		directory: directory,
	}, nil
}

func getFileName(typeName string, entityID common.EntityID) string {
	return typeName + "$" + base64.URLEncoding.EncodeToString([]byte(entityID))
}

func (es *fileSystemEntityStorage) getFilePath(typeName string, entityID common.EntityID) string {
	return filepath.Join(es.directory, getFileName(typeName, entityID))
}

func (es *fileSystemEntityStorage) Write(typeName string, entityID common.EntityID, data interface{}) error {
	saveFile := es.getFilePath(typeName, entityID)
	dataBytes, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	if consts.DEBUG_SAVE_LOAD {
		gwlog.Debugf("Saving to file %s: %s", saveFile, string(dataBytes))
	}
	// readers never see a half written file
	return renameio.WriteFile(saveFile, dataBytes, 0644)
}

func (es *fileSystemEntityStorage) Read(typeName string, entityID common.EntityID) (interface{}, error) {
	dataBytes, err := os.ReadFile(es.getFilePath(typeName, entityID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var data interface{}
	if err = json.Unmarshal(dataBytes, &data); err != nil {
		return nil, errors.Wrapf(err, "corrupted %s %s", typeName, entityID)
	}
	return data, nil
}

func (es *fileSystemEntityStorage) Exists(typeName string, entityID common.EntityID) (bool, error) {
	_, err := os.Stat(es.getFilePath(typeName, entityID))
	if err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (es *fileSystemEntityStorage) List(typeName string) ([]common.EntityID, error) {
	prefix := typeName + "$"
	files, err := filepath.Glob(filepath.Join(es.directory, prefix+"*"))
	if err != nil {
		return nil, err
	}
	res := make([]common.EntityID, 0, len(files))
	for _, fpath := range files {
		_, fn := filepath.Split(fpath)
		if !strings.HasPrefix(fn, prefix) {
			gwlog.Errorf("invalid file: %s", fpath)
			continue
		}
		idbytes, err := base64.URLEncoding.DecodeString(fn[len(prefix):])
		if err != nil {
			// renameio temp files end up here
			continue
		}

		res = append(res, common.EntityID(idbytes))
	}
	return res, nil
}

func (es *fileSystemEntityStorage) Close() {
}

func (es *fileSystemEntityStorage) IsEOF(err error) bool {
	return false
}
