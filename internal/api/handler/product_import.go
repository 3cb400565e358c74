package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/service/productimport"
)

// maxUploadSize はアップロードできるCSVの上限です
const maxUploadSize = 10 << 20

type ProductImportService interface {
	Import(ctx context.Context, data []byte, dialect productimport.Dialect) (*model.ImportResult, error)
}

type ProductImportHandler struct {
	service ProductImportService
	rs      *response.Responder
}

func NewProductImportHandler(service ProductImportService, rs *response.Responder) *ProductImportHandler {
	if service == nil {
		panic("product import service cannot be nil")
	}
	return &ProductImportHandler{service: service, rs: rs}
}

// Import POST /admin/products/import
// mappingパラメータ(JSON)でヘッダと項目の対応を変更できます
func (h *ProductImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, productimport.Generic)
}

// ImportPOS POST /admin/products/import-pos
func (h *ProductImportHandler) ImportPOS(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, productimport.POS)
}

func (h *ProductImportHandler) handle(w http.ResponseWriter, r *http.Request, dialect productimport.Dialect) {
	data, rawMapping, err := readUpload(w, r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	if rawMapping != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(rawMapping), &m); err != nil {
			h.rs.Error(w, r, apperror.Validation([]string{"mapping must be a JSON object of column to field"}))
			return
		}
		mapping, err := productimport.ParseColumnMapping(m)
		if err != nil {
			h.rs.Error(w, r, apperror.Validation([]string{err.Error()}))
			return
		}
		dialect = dialect.WithMapping(mapping)
	}

	result, err := h.service.Import(r.Context(), data, dialect)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, result)
}

// readUpload はmultipartのfileフィールド、またはリクエストボディそのものをCSVとして読み込みます
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, "", uploadError(err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, "", apperror.Validation([]string{"file is required"})
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", uploadError(err)
		}
		return data, r.FormValue("mapping"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", uploadError(err)
	}
	if len(data) == 0 {
		return nil, "", apperror.Validation([]string{"file is required"})
	}
	return data, r.URL.Query().Get("mapping"), nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.Validation([]string{"file is too large"})
	}
	return apperror.Validation([]string{"failed to read upload: " + err.Error()})
}
