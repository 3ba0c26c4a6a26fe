package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetSources lists the registered sources with their capabilities.
func GetSources(c *fiber.Ctx) error {
	descriptors, enabled := Engine.ListSources(c.QueryBool("includeAdult"), c.QueryBool("adultOnly"))
	return c.JSON(fiber.Map{
		"sources": descriptors,
		"enabled": enabled,
	})
}

// GetSourceStatus reports the connectivity snapshot for every source.
func GetSourceStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sources": Engine.Status(c.Context()),
	})
}

// GetTags returns the aggregated tag vocabulary, optionally narrowed to a
// source list.
func GetTags(c *fiber.Ctx) error {
	set := Engine.GetTags(c.Context(), splitParam(c.Query("sources")), c.QueryBool("includeAdult"))
	return c.JSON(set)
}
