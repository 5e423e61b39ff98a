package product

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	ierr "go-firestore-admin/internal/errors"
	"go-firestore-admin/internal/export"
	"go-firestore-admin/internal/handler"
	"go-firestore-admin/internal/logger"
	"go-firestore-admin/internal/model"
	"go-firestore-admin/internal/productlist"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Repository interface {
	FetchAll(ctx context.Context) ([]model.Product, error)
	GetById(ctx context.Context, id string) (*model.Product, error)
	Add(ctx context.Context, draft model.ProductDraft) (model.Product, error)
	Update(ctx context.Context, id string, draft model.ProductDraft) (model.Product, error)
	Remove(ctx context.Context, id string) error
}

type Handler struct {
	repo          Repository
	writeWorkbook func(io.Writer, []model.Product) error
}

func New(repo Repository) *Handler {
	return &Handler{
		repo:          repo,
		writeWorkbook: export.WriteProducts,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/export", h.Export)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List returns every product, narrowed by the optional q search term.
func (h *Handler) List(c echo.Context) error {
	products, err := h.repo.FetchAll(c.Request().Context())
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, productlist.Filter(products, c.QueryParam("q")))
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.repo.GetById(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	draft, closeImage, err := draftFromForm(c)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	defer closeImage()

	p, err := h.repo.Add(c.Request().Context(), draft)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	logger.FromContext(c.Request().Context()).Info().Str("productId", p.Id).Msg("product created")
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	draft, closeImage, err := draftFromForm(c)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	defer closeImage()

	p, err := h.repo.Update(c.Request().Context(), c.Param("id"), draft)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	logger.FromContext(c.Request().Context()).Info().Str("productId", p.Id).Msg("product updated")
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.repo.Remove(c.Request().Context(), id); err != nil {
		return handler.ErrorResponse(c, err)
	}

	logger.FromContext(c.Request().Context()).Info().Str("productId", id).Msg("product deleted")
	return c.NoContent(http.StatusNoContent)
}

// Export sends the (optionally filtered) product table as an xlsx file.
func (h *Handler) Export(c echo.Context) error {
	products, err := h.repo.FetchAll(c.Request().Context())
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	// built in memory first so a failure still gets a proper error status
	var buf bytes.Buffer
	if err := h.writeWorkbook(&buf, productlist.Filter(products, c.QueryParam("q"))); err != nil {
		return handler.ErrorResponse(c, fmt.Errorf("export products: %w", err))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// draftFromForm reads the product form. The returned func closes the uploaded file, if any.
func draftFromForm(c echo.Context) (model.ProductDraft, func(), error) {
	draft := model.ProductDraft{
		Name:     c.FormValue("name"),
		Category: c.FormValue("category"),
		Price:    c.FormValue("price"),
		Stock:    c.FormValue("stock"),
		Sales:    c.FormValue("sales"),
	}

	fh, err := c.FormFile("img")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return draft, func() {}, nil
	}
	if err != nil {
		return model.ProductDraft{}, nil, ierr.NewValidationError(ierr.FieldError{Field: "img", Reason: err.Error()})
	}

	file, err := fh.Open()
	if err != nil {
		return model.ProductDraft{}, nil, fmt.Errorf("open image: %w", err)
	}

	draft.Image = imageFile(c, fh, file)
	return draft, func() { file.Close() }, nil
}

func imageFile(c echo.Context, fh *multipart.FileHeader, file multipart.File) *model.ImageFile {
	l := logger.FromContext(c.Request().Context())
	return &model.ImageFile{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  file,
		OnProgress: func(pct float64) {
			l.Debug().Str("file", fh.Filename).Float64("progress", pct).Msg("image upload")
		},
	}
}
