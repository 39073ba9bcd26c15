package store

// Entity types versioned by the store. Content and design are singletons
// (no entity id); images and properties are collections keyed by id.
const (
	EntityContent    = "content"
	EntityDesign     = "design"
	EntityImages     = "images"
	EntityProperties = "properties"
)

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t string) bool {
	switch t {
	case EntityContent, EntityDesign, EntityImages, EntityProperties:
		return true
	}
	return false
}

// IsSingleton reports whether t has exactly one instance (empty entity id).
func IsSingleton(t string) bool {
	return t == EntityContent || t == EntityDesign
}

// IsCritical reports whether saves to t must fail hard when the store is
// unreachable. There is no safe default for creating property records, so
// those never degrade to cache-only persistence.
func IsCritical(t string) bool {
	return t == EntityProperties
}
