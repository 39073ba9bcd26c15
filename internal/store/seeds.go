package store

import "encoding/json"

// Seed returns the hard-coded default payload for an entity type, used as
// the last rung of the read fallback (store, then cache, then seed) so a
// fresh or fully offline install still renders a usable site.
func Seed(entityType string) json.RawMessage {
	switch entityType {
	case EntityContent:
		return json.RawMessage(`{
			"hero": {
				"title": "Find Your Dream Home",
				"subtitle": "Premium properties in the best locations"
			},
			"about": {
				"title": "About Us",
				"paragraphs": [
					"We have helped families find the right home for over a decade.",
					"Our agents know every neighborhood we serve."
				]
			},
			"services": [
				{"title": "Buying", "description": "Guidance through every step of the purchase."},
				{"title": "Selling", "description": "Marketing that gets your property seen."},
				{"title": "Valuation", "description": "Free, no-obligation market valuation."}
			],
			"contact": {
				"phone": "+1 (555) 010-0000",
				"email": "hello@estatepress.dev",
				"address": "100 Main Street"
			}
		}`)

	case EntityDesign:
		return json.RawMessage(`{
			"primaryColor": "#1a3c5e",
			"secondaryColor": "#f5f0e8",
			"accentColor": "#c9a227",
			"fontFamily": "Inter, sans-serif",
			"logoUrl": "",
			"darkMode": false
		}`)

	case EntityImages:
		return json.RawMessage(`{
			"category": "hero",
			"images": [
				{"url": "/img/default-hero.jpg", "alt": "Modern house exterior", "order": 0}
			]
		}`)

	case EntityProperties:
		return json.RawMessage(`[]`)
	}

	return json.RawMessage(`{}`)
}
