package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type BooksController struct {
	books  BookStore
	reader ReaderSessions
}

// NewBooksController creates a books controller. reader may be nil.
func NewBooksController(books BookStore, reader ReaderSessions) *BooksController {
	return &BooksController{
		books:  books,
		reader: reader,
	}
}

// Upload handles POST /api/books with a multipart "file" field.
func (controller *BooksController) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		respondInternalError(c, err, "open upload")
		return
	}
	defer f.Close()

	// One byte over the limit is enough for the library to reject it.
	data, err := io.ReadAll(io.LimitReader(f, controller.books.MaxUploadBytes()+1))
	if err != nil {
		respondInternalError(c, err, "read upload")
		return
	}

	meta, created, err := controller.books.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		respondServiceError(c, err, "upload book")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"book": meta, "created": created})
}

func (controller *BooksController) GetAllBooks(c *gin.Context) {
	books, err := controller.books.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	meta, err := controller.books.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get book")
		return
	}
	c.IndentedJSON(http.StatusOK, meta)
}

func (controller *BooksController) GetCover(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	data, mediaType, err := controller.books.Cover(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get cover")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mediaType, data)
}

// DeleteBook removes a book and every record keyed by it. An open view of
// the book is closed first so no flush recreates its annotations.
func (controller *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		return
	}
	if controller.reader != nil {
		controller.reader.Forget(c.Request.Context(), id)
	}
	if err := controller.books.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}
