package server

import (
	"github.com/gin-gonic/gin"

	"github.com/manabill-io/manabill/pkg/db/pagination"
)

func (s *Server) ListProducts(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	products, err := s.catalogSvc.ListProducts(c.Request.Context(), tenant, page.Limit(), page.Offset())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, products, &pagination.PageInfo{
		NextPageToken: pagination.NextToken(page.Offset(), len(products)),
		PageSize:      int32(page.Limit()),
	})
}

func (s *Server) ListCourses(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	courses, err := s.catalogSvc.ListCourses(c.Request.Context(), tenant, page.Limit(), page.Offset())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, courses, &pagination.PageInfo{
		NextPageToken: pagination.NextToken(page.Offset(), len(courses)),
		PageSize:      int32(page.Limit()),
	})
}
