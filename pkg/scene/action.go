package scene

import "sort"

// Channel identifies which pose property an FCurve animates.
type Channel int

const (
	// ChannelRotation animates one component of a bone's rotation
	// quaternion; Index 0..3 maps to W, X, Y, Z.
	ChannelRotation Channel = iota
	// ChannelLocation animates one component of a bone's local
	// translation; Index 0..2 maps to X, Y, Z.
	ChannelLocation
)

// Keyframe is a single control point of an FCurve.
type Keyframe struct {
	Frame float32
	Value float32
}

// FCurve is one keyframed channel of a bone. Evaluation is linear between
// keyframes and clamps outside the keyed range.
type FCurve struct {
	Bone      string
	Channel   Channel
	Index     int
	Keyframes []Keyframe
}

// Evaluate samples the curve at an arbitrary (sub)frame time.
func (c *FCurve) Evaluate(frame float32) float32 {
	kfs := c.Keyframes
	if len(kfs) == 0 {
		return 0
	}
	if frame <= kfs[0].Frame {
		return kfs[0].Value
	}
	last := kfs[len(kfs)-1]
	if frame >= last.Frame {
		return last.Value
	}
	i := sort.Search(len(kfs), func(i int) bool { return kfs[i].Frame > frame })
	a, b := kfs[i-1], kfs[i]
	span := b.Frame - a.Frame
	if span <= 0 {
		return a.Value
	}
	t := (frame - a.Frame) / span
	return a.Value + t*(b.Value-a.Value)
}

// Action is a named set of FCurves, the unit an animation is sampled from.
type Action struct {
	Name   string
	Curves []*FCurve
}

// FrameRange returns the first and last keyed frame across all curves.
func (a *Action) FrameRange() (float32, float32) {
	first, last := float32(0), float32(0)
	seen := false
	for _, c := range a.Curves {
		for _, kf := range c.Keyframes {
			if !seen || kf.Frame < first {
				first = kf.Frame
			}
			if !seen || kf.Frame > last {
				last = kf.Frame
			}
			seen = true
		}
	}
	return first, last
}

// KeyframeTimes returns the sorted union of all distinct keyframe times
// across every curve of the action.
func (a *Action) KeyframeTimes() []float32 {
	set := make(map[float32]struct{})
	for _, c := range a.Curves {
		for _, kf := range c.Keyframes {
			set[kf.Frame] = struct{}{}
		}
	}
	times := make([]float32, 0, len(set))
	for t := range set {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}

// boneCurves returns the curves animating the named bone.
func (a *Action) boneCurves(bone string) []*FCurve {
	var out []*FCurve
	for _, c := range a.Curves {
		if c.Bone == bone {
			out = append(out, c)
		}
	}
	return out
}

// Strip is a placed action on a track.
type Strip struct {
	Action *Action
}

// Track is a non-linear animation track holding strips. Mute is playback
// state the sampler toggles and must restore.
type Track struct {
	Name   string
	Mute   bool
	Strips []*Strip
}

// AnimData is an armature object's animation state: the currently assigned
// action plus its tracks.
type AnimData struct {
	Action *Action
	Tracks []*Track
}
