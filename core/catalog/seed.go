package catalog

import "DuetFM/model"

// builtinTracks 内置歌曲，启动时播种，永不删除
func builtinTracks() []model.Track {
	return []model.Track{
		{
			ID:       1,
			Title:    "Perfect",
			Artist:   "Ed Sheeran",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			Cover:    "https://images.unsplash.com/photo-1493225457124-a3eb161ffa5f?w=300&h=300&fit=crop",
			Duration: 263,
		},
		{
			ID:       2,
			Title:    "All of Me",
			Artist:   "John Legend",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
			Cover:    "https://images.unsplash.com/photo-1511379938547-c1f69419868d?w=300&h=300&fit=crop",
			Duration: 271,
		},
		{
			ID:       3,
			Title:    "Just the Way You Are",
			Artist:   "Bruno Mars",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3",
			Cover:    "https://images.unsplash.com/photo-1514320291840-2e0a9bf2a9ae?w=300&h=300&fit=crop",
			Duration: 221,
		},
		{
			ID:       4,
			Title:    "A Thousand Years",
			Artist:   "Christina Perri",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3",
			Cover:    "https://images.unsplash.com/photo-1511379938547-c1f69419868d?w=300&h=300&fit=crop",
			Duration: 269,
		},
		{
			ID:       5,
			Title:    "Can't Help Falling in Love",
			Artist:   "Elvis Presley",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-5.mp3",
			Cover:    "https://images.unsplash.com/photo-1493225457124-a3eb161ffa5f?w=300&h=300&fit=crop",
			Duration: 181,
		},
	}
}
