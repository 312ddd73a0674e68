// ABOUTME: Packet decoding into the output buffer
// ABOUTME: Accumulates decoded frames and hands full buffers to the fill cycle
package audioqueue

import (
	"log"
)

// maxLoggedDrops limits the log lines for packets arriving before Init
const maxLoggedDrops = 5

// decodePacket decodes every frame of pkt. Each time the output buffer
// overflows it is streamed to the device, stamped with the timestamp of the
// packet that overflowed it.
func (q *AudioQueue) decodePacket(pkt *Packet) {
	if q.decoder == nil {
		if q.dropped < maxLoggedDrops {
			log.Printf("Dropping audio packet: stream not initialized")
		}
		q.dropped++
		return
	}

	data := pkt.Data
	for len(data) > 0 {
		consumed, produced, err := q.decoder.Decode(data, q.src.Plane(0))
		if err != nil {
			// skip the rest of a broken packet
			log.Printf("Audio decode error: %v", err)
			return
		}
		if consumed <= 0 && produced <= 0 {
			return
		}
		if consumed > len(data) {
			consumed = len(data)
		}
		data = data[consumed:]
		if produced <= 0 {
			continue
		}

		q.src.SetSize(produced)
		for !q.out.AppendFrom(q.src) {
			if pkt.HasPTS {
				pts := pkt.PTS - q.params.StartBase
				if pts < q.pts {
					log.Printf("Audio packet with pts in the past: new=%.3f old=%.3f", pts, q.pts)
				}
				q.pts = pts
			}

			q.fillBuffers(q.pts, false)
			if q.quitting() {
				return
			}

			// remember what is now in flight
			if n := q.out.WholeSize(); n > 0 {
				q.hist.Push(n)
			}
			q.out.Clear()
		}
	}
}
