// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Spool file naming and creation.

package jobengine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OpenPrinting/go-ippd/ipp"
)

// extensionFor maps a MIME type to the spool file extension a
// transform subprocess expects to see.
func extensionFor(format string) string {
	switch format {
	case "application/pdf":
		return "pdf"
	case "application/postscript":
		return "ps"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/pwg-raster":
		return "ras"
	case "image/urf":
		return "urf"
	default:
		return "prn"
	}
}

// JobSpoolPath returns the spool path for a job's document.
func JobSpoolPath(spoolDir, printerName string, jobID int, format string) string {
	return filepath.Join(spoolDir,
		fmt.Sprintf("%s-%d-%s", printerName, jobID, extensionFor(format)))
}

// ResourceSpoolPath returns the spool path for a resource's payload.
func ResourceSpoolPath(spoolDir string, resourceID int, format string) string {
	return filepath.Join(spoolDir,
		fmt.Sprintf("resource-%d.%s", resourceID, extensionFor(format)))
}

// SpoolWriter creates (or truncates) path and returns the open file,
// ready to receive a document body.
func SpoolWriter(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
}

// ReceiveDocument copies body into the spool file at path, detecting
// the document format from the first bytes when declaredFormat is
// empty or "application/octet-stream". It returns the detected (or
// declared) format and the number of bytes written.
func ReceiveDocument(path, declaredFormat string, body io.Reader) (
	format string, n int64, err error) {

	peek := NewPeeker(body)
	format = declaredFormat

	if format == "" || format == "application/octet-stream" {
		head := peek.PeekN(ipp.DetectFormatLen)
		peek.Rewind()
		if detected := ipp.DetectFormat(head); detected != "" {
			format = detected
		} else if format == "" {
			format = "application/octet-stream"
		}
	}

	f, err := SpoolWriter(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err = io.Copy(f, peek)
	if err != nil {
		return format, n, err
	}
	return format, n, nil
}
