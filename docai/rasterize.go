package docai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// maxPageWidth keeps vision-model input sizes sane without losing the
// detail needed to read line items.
const maxPageWidth = 1600

type PageImage struct {
	PageNumber int
	JPEG       []byte
}

// RasterizePDF renders every page of a PDF to a JPEG, downscaling wide
// pages. Page numbers are 1-based.
func RasterizePDF(pdfBytes []byte) ([]PageImage, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]PageImage, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		rendered, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}
		var img image.Image = rendered
		if img.Bounds().Dx() > maxPageWidth {
			img = imaging.Resize(img, maxPageWidth, 0, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n+1, err)
		}
		pages = append(pages, PageImage{PageNumber: n + 1, JPEG: buf.Bytes()})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}

// PreparePageImages turns the uploaded file into per-page JPEGs.
// Images pass through re-encoded; PDFs are rasterized.
func PreparePageImages(fileBytes []byte, mimeType string) ([]PageImage, error) {
	if strings.EqualFold(mimeType, "application/pdf") {
		return RasterizePDF(fileBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > maxPageWidth {
		img = imaging.Resize(img, maxPageWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return []PageImage{{PageNumber: 1, JPEG: buf.Bytes()}}, nil
}

// UploadPageImages stores the page JPEGs concurrently. Uploads are
// commutative so they fan out, but the returned URLs are always
// ordered by page number. Pages already stored by an earlier run of
// the same document are not re-uploaded.
func UploadPageImages(ctx context.Context, businessId string, documentId int, pages []PageImage) ([]string, error) {
	urls := make([]string, len(pages))
	errs := make([]error, len(pages))

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i int, page PageImage) {
			defer wg.Done()
			objectKey := fmt.Sprintf("%s/documents/%d/pages/page-%03d.jpg", businessId, documentId, page.PageNumber)
			if exists, err := utils.ObjectExistsInGCS(ctx, objectKey); err == nil && exists {
				urls[i] = utils.BuildObjectAccessURL(objectKey)
				return
			}
			if err := utils.UploadBytesToGCS(ctx, objectKey, page.JPEG, "image/jpeg"); err != nil {
				errs[i] = err
				return
			}
			urls[i] = utils.BuildObjectAccessURL(objectKey)
		}(i, page)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "docai", "UploadPageImages", "upload page image", pages[i].PageNumber, err)
			return nil, err
		}
	}
	return urls, nil
}
