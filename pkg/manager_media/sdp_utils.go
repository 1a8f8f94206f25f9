package manager_media

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// parseSDP разбирает SDP текст
func parseSDP(text string) (*sdp.SessionDescription, error) {
	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(text)); err != nil {
		return nil, fmt.Errorf("ошибка парсинга SDP: %w", err)
	}
	return desc, nil
}

// extractMediaStreams извлекает информацию о медиа потоках из SDP
func extractMediaStreams(desc *sdp.SessionDescription) []MediaStreamInfo {
	var mediaStreams []MediaStreamInfo

	for _, mediaDesc := range desc.MediaDescriptions {
		streamInfo := MediaStreamInfo{
			Type:      mediaDesc.MediaName.Media,
			Port:      mediaDesc.MediaName.Port.Value,
			Protocol:  strings.Join(mediaDesc.MediaName.Protos, "/"),
			Direction: extractDirection(mediaDesc.Attributes, extractDirection(desc.Attributes, DirectionSendRecv)),
		}

		for _, format := range mediaDesc.MediaName.Formats {
			payloadType, err := strconv.ParseUint(format, 10, 7)
			if err != nil {
				continue
			}

			ptInfo := PayloadTypeInfo{Type: uint8(payloadType)}

			// Информация о кодеке из rtpmap
			for _, attr := range mediaDesc.Attributes {
				if attr.Key != "rtpmap" || !strings.HasPrefix(attr.Value, format+" ") {
					continue
				}
				codecInfo := strings.Split(strings.TrimPrefix(attr.Value, format+" "), "/")
				if len(codecInfo) < 2 {
					continue
				}
				ptInfo.Name = codecInfo[0]
				if clockRate, err := strconv.ParseUint(codecInfo[1], 10, 32); err == nil {
					ptInfo.ClockRate = uint32(clockRate)
				}
				ptInfo.Channels = 1
				if len(codecInfo) >= 3 {
					if channels, err := strconv.ParseUint(codecInfo[2], 10, 8); err == nil {
						ptInfo.Channels = uint8(channels)
					}
				}
			}

			// Если нет rtpmap, используем статические типы RFC 3551
			if ptInfo.Name == "" {
				ptInfo.Name, ptInfo.ClockRate, ptInfo.Channels = getStandardPayloadTypeInfo(ptInfo.Type)
			}

			streamInfo.PayloadTypes = append(streamInfo.PayloadTypes, ptInfo)
		}

		for _, attr := range mediaDesc.Attributes {
			if attr.Key != "ssrc" {
				continue
			}
			fields := strings.Fields(attr.Value)
			if len(fields) == 0 {
				continue
			}
			if ssrc, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
				streamInfo.SSRC = uint32(ssrc)
				break
			}
		}

		mediaStreams = append(mediaStreams, streamInfo)
	}

	return mediaStreams
}

// extractDirection извлекает направление медиа из атрибутов, def - если атрибута нет
func extractDirection(attributes []sdp.Attribute, def MediaDirection) MediaDirection {
	for _, attr := range attributes {
		switch attr.Key {
		case "sendrecv":
			return DirectionSendRecv
		case "sendonly":
			return DirectionSendOnly
		case "recvonly":
			return DirectionRecvOnly
		case "inactive":
			return DirectionInactive
		}
	}
	return def
}

// extractRemoteAddress извлекает удаленный RTP адрес медиа секции mediaIndex.
// Connection data уровня медиа имеет приоритет над уровнем сессии.
func extractRemoteAddress(desc *sdp.SessionDescription, mediaIndex int) (*net.UDPAddr, error) {
	if mediaIndex < 0 || mediaIndex >= len(desc.MediaDescriptions) {
		return nil, fmt.Errorf("медиа секция %d не найдена", mediaIndex)
	}

	var connectionIP string
	if desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil {
		connectionIP = desc.ConnectionInformation.Address.Address
	}

	mediaDesc := desc.MediaDescriptions[mediaIndex]
	if mediaDesc.ConnectionInformation != nil && mediaDesc.ConnectionInformation.Address != nil {
		connectionIP = mediaDesc.ConnectionInformation.Address.Address
	}

	if connectionIP == "" {
		return nil, fmt.Errorf("не найден IP адрес в SDP")
	}

	ip := net.ParseIP(connectionIP)
	if ip == nil {
		return nil, fmt.Errorf("некорректный IP адрес в SDP: %q", connectionIP)
	}

	port := mediaDesc.MediaName.Port.Value
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("некорректный порт в SDP: %d", port)
	}

	return &net.UDPAddr{IP: ip, Port: port}, nil
}

// findAudioStream возвращает индекс первого активного аудио потока (порт не 0)
func findAudioStream(streams []MediaStreamInfo) int {
	for i, stream := range streams {
		if stream.Type == "audio" && stream.Port != 0 {
			return i
		}
	}
	return -1
}

// intersectCodecs оставляет удаленные кодеки, поддерживаемые локально.
// Порядок удаленной стороны сохраняется, telephone-event проходит всегда.
func intersectCodecs(remote []PayloadTypeInfo, supported []string) []PayloadTypeInfo {
	var common []PayloadTypeInfo
	for _, pt := range remote {
		if strings.EqualFold(pt.Name, "telephone-event") {
			common = append(common, pt)
			continue
		}
		for _, name := range supported {
			if strings.EqualFold(pt.Name, name) {
				common = append(common, pt)
				break
			}
		}
	}
	return common
}

// voiceCodec возвращает первый голосовой кодек в порядке удаленной стороны.
// telephone-event не может быть основным типом нагрузки потока.
func voiceCodec(codecs []PayloadTypeInfo) (PayloadTypeInfo, bool) {
	for _, pt := range codecs {
		if !strings.EqualFold(pt.Name, "telephone-event") {
			return pt, true
		}
	}
	return PayloadTypeInfo{}, false
}

// buildAnswerSDP создает SDP ответ для аудио потока
func buildAnswerSDP(localIP string, port int, origin sdp.Origin, codecs []PayloadTypeInfo, direction MediaDirection, ptime int) *sdp.SessionDescription {
	addressType := "IP4"
	if ip := net.ParseIP(localIP); ip != nil && ip.To4() == nil {
		addressType = "IP6"
	}

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "audio",
			Port:    sdp.RangedPort{Value: port},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{},
		},
	}

	for _, codec := range codecs {
		media.MediaName.Formats = append(media.MediaName.Formats, strconv.Itoa(int(codec.Type)))
		rtpmap := fmt.Sprintf("%d %s/%d", codec.Type, codec.Name, codec.ClockRate)
		if codec.Channels > 1 {
			rtpmap += fmt.Sprintf("/%d", codec.Channels)
		}
		media.WithValueAttribute("rtpmap", rtpmap)
		if strings.EqualFold(codec.Name, "telephone-event") {
			media.WithValueAttribute("fmtp", fmt.Sprintf("%d 0-16", codec.Type))
		}
	}
	if ptime > 0 {
		media.WithValueAttribute("ptime", strconv.Itoa(ptime))
	}
	media.WithPropertyAttribute(direction.String())

	return &sdp.SessionDescription{
		Version:     0,
		Origin:      origin,
		SessionName: "leg_media",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addressType,
			Address:     &sdp.Address{Address: localIP},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{media},
	}
}

// getStandardPayloadTypeInfo возвращает информацию о статическом payload типе
func getStandardPayloadTypeInfo(payloadType uint8) (string, uint32, uint8) {
	switch payloadType {
	case 0:
		return "PCMU", 8000, 1
	case 3:
		return "GSM", 8000, 1
	case 4:
		return "G723", 8000, 1
	case 5:
		return "DVI4", 8000, 1
	case 6:
		return "DVI4", 16000, 1
	case 7:
		return "LPC", 8000, 1
	case 8:
		return "PCMA", 8000, 1
	case 9:
		return "G722", 8000, 1
	case 10:
		return "L16", 44100, 2
	case 11:
		return "L16", 44100, 1
	case 12:
		return "QCELP", 8000, 1
	case 13:
		return "CN", 8000, 1
	case 14:
		return "MPA", 90000, 1
	case 15:
		return "G728", 8000, 1
	case 18:
		return "G729", 8000, 1
	default:
		return fmt.Sprintf("Unknown_%d", payloadType), 8000, 1
	}
}
