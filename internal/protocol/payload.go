package protocol

// Payload is the closed set of message bodies the protocol layer can deliver.
type Payload interface {
	isPayload()
}

type Conversation struct {
	Text string
}

type ExtendedText struct {
	Text string
}

type Image struct {
	Caption  string
	MediaRef string
}

type Video struct {
	Caption  string
	MediaRef string
}

type Audio struct {
	MediaRef string
}

type Document struct {
	FileName string
	MediaRef string
}

// Other is any payload without a dedicated mapping (stickers, reactions, polls...).
type Other struct {
	Kind string
}

func (Conversation) isPayload() {}
func (ExtendedText) isPayload() {}
func (Image) isPayload()        {}
func (Video) isPayload()        {}
func (Audio) isPayload()        {}
func (Document) isPayload()     {}
func (Other) isPayload()        {}
