package tts

// streamScript streams one edge-tts request: stdin holds the text, argv the
// voice and the audio path. Every WordBoundary event is printed to stdout as
// one JSON object per line.
const streamScript = `import asyncio, json, sys
import edge_tts

async def main():
    text = sys.stdin.read()
    voice, out = sys.argv[1], sys.argv[2]
    try:
        comm = edge_tts.Communicate(text, voice, boundary="WordBoundary")
    except TypeError:
        comm = edge_tts.Communicate(text, voice)
    with open(out, "wb") as f:
        async for chunk in comm.stream():
            if chunk["type"] == "audio":
                f.write(chunk["data"])
            elif chunk["type"] == "WordBoundary":
                print(json.dumps({"offset": chunk["offset"], "duration": chunk["duration"], "text": chunk["text"]}), flush=True)

asyncio.run(main())
`
