// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package replay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
)

var errBadDataURL = errors.New("malformed data URL")

// photo is the resolved content of one slot.
type photo struct {
	data     []byte
	mimeType string
	filename string
}

// promote uploads each slot's photo and patches its URL onto the chamber.
// Failures become warnings. Staged blobs for both slots are removed at the
// end regardless of outcome.
func (p *pass) promote(ctx context.Context, chamberID string, pl *models.CreateChamberPayload) {
	for _, slot := range models.PhotoSlots {
		ref := pl.Photo(slot)
		if ref == nil {
			continue
		}
		if err := p.promoteSlot(ctx, chamberID, slot, ref); err != nil {
			metrics.RecordBlobPromotion(string(slot), "warning")
			logging.Ctx(ctx).Warn().Err(err).
				Str("chamber_id", chamberID).
				Str("slot", string(slot)).
				Msg("photo promotion failed")
			p.warn(fmt.Sprintf("Chamber %s: %s photo not uploaded: %v", pl.Identifier, slot, err))
		}
	}

	if keys := pl.StagedKeys(); len(keys) > 0 {
		if err := p.r.blobs.Remove(ctx, keys...); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Strs("blob_keys", keys).Msg("failed to remove staged photos")
		}
	}
}

func (p *pass) promoteSlot(ctx context.Context, chamberID string, slot models.PhotoSlot, ref *models.PhotoRef) error {
	ph, ok, err := p.loadPhoto(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		metrics.RecordBlobPromotion(string(slot), "skipped")
		return nil
	}

	objectPath := photoPath(chamberID, slot, ph.filename, p.r.cfg.DefaultPhotoExt)

	cctx, cancel := p.callCtx(ctx)
	url, err := p.r.backend.UploadBlob(cctx, p.r.cfg.Bucket, objectPath, ph.data, ph.mimeType)
	cancel()
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := p.update(ctx, models.TableChambers, chamberID, map[string]interface{}{slot.URLField(): url}); err != nil {
		return fmt.Errorf("set %s: %w", slot.URLField(), err)
	}
	metrics.RecordBlobPromotion(string(slot), "uploaded")
	return nil
}

// loadPhoto reads the staged blob, or decodes the inline data URL when no
// staging key was recorded. ok is false when there is nothing to upload.
func (p *pass) loadPhoto(ctx context.Context, ref *models.PhotoRef) (photo, bool, error) {
	if ref.StagedKey != "" {
		blob, ok, err := p.r.blobs.Retrieve(ctx, ref.StagedKey)
		if err != nil {
			return photo{}, false, fmt.Errorf("read staged photo: %w", err)
		}
		if !ok || len(blob.Data) == 0 {
			return photo{}, false, nil
		}
		name := blob.Filename
		if name == "" {
			name = ref.Filename
		}
		return photo{data: blob.Data, mimeType: blob.MimeType, filename: name}, true, nil
	}

	if ref.Inline == "" {
		return photo{}, false, nil
	}
	data, mimeType, err := decodeDataURL(ref.Inline)
	if err != nil {
		return photo{}, false, err
	}
	if len(data) == 0 {
		return photo{}, false, nil
	}
	return photo{data: data, mimeType: mimeType, filename: ref.Filename}, true, nil
}

// decodeDataURL parses "data:<mime>;base64,<payload>". A bare base64 string
// is accepted as image/jpeg.
func decodeDataURL(s string) ([]byte, string, error) {
	mimeType := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		meta, rest, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, "", errBadDataURL
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: not base64 encoded", errBadDataURL)
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mimeType = m
		}
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadDataURL, err)
	}
	return data, mimeType, nil
}

// photoPath returns "<chamberID>/<slot><ext>".
func photoPath(chamberID string, slot models.PhotoSlot, filename, defaultExt string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || ext == "." {
		ext = defaultExt
	}
	return chamberID + "/" + string(slot) + ext
}
