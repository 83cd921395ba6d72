// Package integrations groups the third-party lookups the arcade site serves
// next to the game: GitHub projects, visitor country, local weather,
// seasonal theme and the hire form relay. Every lookup degrades to an empty
// result instead of failing the page.
package integrations
