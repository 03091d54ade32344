package mapview

// LatLng is a coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Camera is the current view of the map
type Camera struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// TileLayer is the base raster layer
type TileLayer struct {
	URL         string `json:"url"`
	MaxZoom     int    `json:"maxZoom"`
	Attribution string `json:"attribution"`
}

// Icon is a marker image. A nil icon means the widget default.
type Icon struct {
	URL         string `json:"iconUrl"`
	Size        [2]int `json:"iconSize,omitempty"`
	Anchor      [2]int `json:"iconAnchor,omitempty"`
	PopupAnchor [2]int `json:"popupAnchor,omitempty"`
}

// Widget is the map widget a Map drives. Implementations render into a
// container and are only called from the goroutine that owns the Map.
type Widget interface {
	// Mount binds the widget to its container
	Mount(containerID string) error
	SetView(center LatLng, zoom int)
	AddTileLayer(layer TileLayer)
	AddMarker(m *Marker)
	RemoveMarker(h Handle)
	OpenPopup(h Handle)
}
