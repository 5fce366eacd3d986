package bot

// PlaylistEntry is one queued track.
type PlaylistEntry struct {
	Title string
	URL   string
}

// Playlist is the bot-owned FIFO track queue. It is only touched from the
// polling loop's goroutine and is not persisted.
type Playlist struct {
	entries []PlaylistEntry
}

// Add appends a track to the end of the queue.
func (p *Playlist) Add(title, url string) {
	p.entries = append(p.entries, PlaylistEntry{Title: title, URL: url})
}

// PopFront removes and returns the next track.
func (p *Playlist) PopFront() (PlaylistEntry, bool) {
	if len(p.entries) == 0 {
		return PlaylistEntry{}, false
	}
	e := p.entries[0]
	p.entries = p.entries[1:]
	return e, true
}

// Entries returns the queued tracks in play order.
func (p *Playlist) Entries() []PlaylistEntry {
	return p.entries
}

// Clear empties the queue.
func (p *Playlist) Clear() {
	p.entries = nil
}

// Len returns the queue depth.
func (p *Playlist) Len() int { return len(p.entries) }
