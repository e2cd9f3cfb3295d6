package hdiutil

import (
	"fmt"

	"howett.net/plist"
)

// Entity is one entry from the tool's system-entities list. Only some
// entities carry a mount point; partition maps and the like do not.
type Entity struct {
	MountPoint  string `plist:"mount-point"`
	DevEntry    string `plist:"dev-entry"`
	ContentHint string `plist:"content-hint"`
	VolumeKind  string `plist:"volume-kind"`
}

// Image is one attached container from `info -plist`. ImagePath is the
// on-disk source path of the container backing the image.
type Image struct {
	ImagePath string   `plist:"image-path"`
	ImageType string   `plist:"image-type"`
	Entities  []Entity `plist:"system-entities"`
}

type attachDocument struct {
	Entities []Entity `plist:"system-entities"`
}

type infoDocument struct {
	Images []Image `plist:"images"`
}

type diskutilDocument struct {
	VolumeUUID string `plist:"VolumeUUID"`
}

func parseAttach(out []byte) (*attachDocument, error) {
	var doc attachDocument
	if _, err := plist.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("hdiutil: parse attach output: %w", err)
	}
	return &doc, nil
}

func parseInfo(out []byte) (*infoDocument, error) {
	var doc infoDocument
	if _, err := plist.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("hdiutil: parse info output: %w", err)
	}
	return &doc, nil
}

func parseVolumeUUID(out []byte) (string, error) {
	var doc diskutilDocument
	if _, err := plist.Unmarshal(out, &doc); err != nil {
		return "", fmt.Errorf("diskutil: parse info output: %w", err)
	}
	return doc.VolumeUUID, nil
}
